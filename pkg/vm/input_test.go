package vm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildInput assembles a raw serialized-accounts input region with a
// single non-duplicate account (4 bytes of data, signer, not writable,
// not executable), no duplicate accounts, 3 bytes of instruction data,
// and a trailing 32-byte program id.
func buildInput() []byte {
	var buf []byte
	putU64 := func(v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		buf = append(buf, b...)
	}

	putU64(1) // account_count

	buf = append(buf, nonDuplicateMarker, 1, 0, 0, 0, 0, 0, 0) // marker + is_signer=1 + padding
	buf = append(buf, make([]byte, 32)...)                     // pubkey
	buf = append(buf, make([]byte, 32)...)                     // owner
	putU64(0)                                                  // lamports
	putU64(4)                                                  // data_len
	buf = append(buf, []byte{0xaa, 0xbb, 0xcc, 0xdd}...)       // data
	buf = append(buf, make([]byte, maxPermittedDataIncrease)...)
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	putU64(0) // rent_epoch

	putU64(3) // instruction_data_len
	buf = append(buf, []byte{1, 2, 3}...)

	buf = append(buf, make([]byte, 32)...) // program_id

	return buf
}

func newInputMapping(t *testing.T, raw []byte) *Mapping {
	t.Helper()
	return NewMapping([]Region{
		{Name: "input", VMAddr: InputVMAddr, Host: raw, Writable: true},
	}, false)
}

func TestParseInputRegionSingleAccount(t *testing.T) {
	m := newInputMapping(t, buildInput())
	sem, err := ParseInputRegion(m)
	require.NoError(t, err)

	counts := sem.Find(AttrAccountCount)
	require.Len(t, counts, 1)

	signers := sem.Find(AttrAccountIsSigner)
	require.Len(t, signers, 1)
	require.Equal(t, 0, signers[0].Account)

	data := sem.Find(AttrAccountData)
	require.Len(t, data, 1)
	require.Equal(t, uint64(4), data[0].Length)

	instr := sem.Find(AttrInstructionData)
	require.Len(t, instr, 1)
	require.Equal(t, uint64(3), instr[0].Length)

	progID := sem.Find(AttrProgramID)
	require.Len(t, progID, 1)
}

func TestParseInputRegionTruncatedErrors(t *testing.T) {
	raw := buildInput()
	m := newInputMapping(t, raw[:len(raw)-40])
	_, err := ParseInputRegion(m)
	require.Error(t, err)
}

func TestParseInputRegionDuplicateAccount(t *testing.T) {
	var buf []byte
	putU64 := func(v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		buf = append(buf, b...)
	}
	putU64(1)
	buf = append(buf, []byte{0, 0, 0, 0, 0, 0, 0, 0}...) // duplicate marker (index 0) + padding
	putU64(0)                                            // instruction_data_len
	buf = append(buf, make([]byte, 32)...)               // program_id

	m := newInputMapping(t, buf)
	sem, err := ParseInputRegion(m)
	require.NoError(t, err)

	markers := sem.Find(AttrAccountDuplicateMarker)
	require.Len(t, markers, 1)
}

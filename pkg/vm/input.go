package vm

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// InputAttributeKind names one semantic field the input-region parser
// recognizes, following the Solana BPF loader's serialized-accounts
// layout: an account count, a run of per-account records (each
// short-circuited to an 8-byte duplicate marker when it repeats an
// earlier account), instruction data, and a trailing program id.
type InputAttributeKind uint8

const (
	AttrAccountCount InputAttributeKind = iota
	AttrAccountDuplicateMarker
	AttrAccountIsSigner
	AttrAccountIsWritable
	AttrAccountIsExecutable
	AttrAccountPubkey
	AttrAccountOwner
	AttrAccountLamports
	AttrAccountDataLen
	AttrAccountData
	AttrAccountRentEpoch
	AttrInstructionDataLen
	AttrInstructionData
	AttrProgramID
)

func (k InputAttributeKind) String() string {
	switch k {
	case AttrAccountCount:
		return "AccountCount"
	case AttrAccountDuplicateMarker:
		return "AccountDuplicateMarker"
	case AttrAccountIsSigner:
		return "AccountIsSigner"
	case AttrAccountIsWritable:
		return "AccountIsWritable"
	case AttrAccountIsExecutable:
		return "AccountIsExecutable"
	case AttrAccountPubkey:
		return "AccountPubkey"
	case AttrAccountOwner:
		return "AccountOwner"
	case AttrAccountLamports:
		return "AccountLamports"
	case AttrAccountDataLen:
		return "AccountDataLen"
	case AttrAccountData:
		return "AccountData"
	case AttrAccountRentEpoch:
		return "AccountRentEpoch"
	case AttrInstructionDataLen:
		return "InstructionDataLen"
	case AttrInstructionData:
		return "InstructionData"
	case AttrProgramID:
		return "ProgramID"
	default:
		return "Unknown"
	}
}

// InputAttribute names one field's byte range within the input region,
// in guest address terms. Account is the zero-based account index the
// field belongs to, or -1 for fields that aren't account-scoped.
type InputAttribute struct {
	Kind    InputAttributeKind
	Account int
	Addr    uint64
	Length  uint64
}

// SemanticMapping is the parsed shape of one program's input region, fed
// to an attached Instrumenter so a fuzzer can target mutations at, say,
// "account 2's lamports" instead of raw offsets.
type SemanticMapping struct {
	Attributes []InputAttribute
}

// Find returns every attribute of the given kind, in parse order.
func (m SemanticMapping) Find(kind InputAttributeKind) []InputAttribute {
	var out []InputAttribute
	for _, a := range m.Attributes {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

const (
	nonDuplicateMarker  = 0xff
	accountHeaderLength = 8 + 32 + 32 + 8 + 8 // flags+padding, pubkey, owner, lamports, data_len
	maxPermittedDataIncrease = 10 * 1024
)

func alignUp8(n uint64) uint64 {
	return (n + 7) &^ 7
}

// ParseInputRegion walks the raw bytes of the canonical input region
// into a SemanticMapping. It is read-only and side-effect-free: a
// malformed region (one that runs past its own declared lengths)
// produces an error rather than a fault, since it is consulted only for
// instrumentation, never by the interpreter's own execution path.
func ParseInputRegion(m *Mapping) (SemanticMapping, error) {
	region, ok := m.RegionAt(InputVMAddr)
	if !ok {
		return SemanticMapping{}, errors.New("no input region mapped")
	}
	data := region.Host
	var mapping SemanticMapping
	cursor := uint64(0)

	need := func(n uint64) error {
		if cursor+n > uint64(len(data)) {
			return errors.Errorf("input region truncated at offset %d, need %d more bytes", cursor, n)
		}
		return nil
	}

	if err := need(8); err != nil {
		return SemanticMapping{}, err
	}
	count := binary.LittleEndian.Uint64(data[cursor:])
	mapping.Attributes = append(mapping.Attributes, InputAttribute{
		Kind: AttrAccountCount, Account: -1, Addr: region.VMAddr + cursor, Length: 8,
	})
	cursor += 8

	for i := uint64(0); i < count; i++ {
		if err := need(1); err != nil {
			return SemanticMapping{}, err
		}
		if data[cursor] != nonDuplicateMarker {
			mapping.Attributes = append(mapping.Attributes, InputAttribute{
				Kind: AttrAccountDuplicateMarker, Account: int(i), Addr: region.VMAddr + cursor, Length: 8,
			})
			cursor += 8
			continue
		}

		if err := need(accountHeaderLength); err != nil {
			return SemanticMapping{}, err
		}
		base := cursor
		mapping.Attributes = append(mapping.Attributes,
			InputAttribute{Kind: AttrAccountIsSigner, Account: int(i), Addr: region.VMAddr + base + 1, Length: 1},
			InputAttribute{Kind: AttrAccountIsWritable, Account: int(i), Addr: region.VMAddr + base + 2, Length: 1},
			InputAttribute{Kind: AttrAccountIsExecutable, Account: int(i), Addr: region.VMAddr + base + 3, Length: 1},
		)
		cursor += 8 // duplicate marker, 3 flag bytes, 4 bytes alignment padding
		mapping.Attributes = append(mapping.Attributes, InputAttribute{
			Kind: AttrAccountPubkey, Account: int(i), Addr: region.VMAddr + cursor, Length: 32,
		})
		cursor += 32
		mapping.Attributes = append(mapping.Attributes, InputAttribute{
			Kind: AttrAccountOwner, Account: int(i), Addr: region.VMAddr + cursor, Length: 32,
		})
		cursor += 32
		mapping.Attributes = append(mapping.Attributes, InputAttribute{
			Kind: AttrAccountLamports, Account: int(i), Addr: region.VMAddr + cursor, Length: 8,
		})
		cursor += 8
		if err := need(8); err != nil {
			return SemanticMapping{}, err
		}
		dataLen := binary.LittleEndian.Uint64(data[cursor:])
		mapping.Attributes = append(mapping.Attributes, InputAttribute{
			Kind: AttrAccountDataLen, Account: int(i), Addr: region.VMAddr + cursor, Length: 8,
		})
		cursor += 8

		if err := need(dataLen); err != nil {
			return SemanticMapping{}, err
		}
		mapping.Attributes = append(mapping.Attributes, InputAttribute{
			Kind: AttrAccountData, Account: int(i), Addr: region.VMAddr + cursor, Length: dataLen,
		})
		cursor += dataLen
		cursor += maxPermittedDataIncrease
		cursor = alignUp8(cursor)

		if err := need(8); err != nil {
			return SemanticMapping{}, err
		}
		mapping.Attributes = append(mapping.Attributes, InputAttribute{
			Kind: AttrAccountRentEpoch, Account: int(i), Addr: region.VMAddr + cursor, Length: 8,
		})
		cursor += 8
	}

	if err := need(8); err != nil {
		return SemanticMapping{}, err
	}
	instrLen := binary.LittleEndian.Uint64(data[cursor:])
	mapping.Attributes = append(mapping.Attributes, InputAttribute{
		Kind: AttrInstructionDataLen, Account: -1, Addr: region.VMAddr + cursor, Length: 8,
	})
	cursor += 8

	if err := need(instrLen); err != nil {
		return SemanticMapping{}, err
	}
	mapping.Attributes = append(mapping.Attributes, InputAttribute{
		Kind: AttrInstructionData, Account: -1, Addr: region.VMAddr + cursor, Length: instrLen,
	})
	cursor += instrLen

	if err := need(32); err != nil {
		return SemanticMapping{}, err
	}
	mapping.Attributes = append(mapping.Attributes, InputAttribute{
		Kind: AttrProgramID, Account: -1, Addr: region.VMAddr + cursor, Length: 32,
	})

	return mapping, nil
}

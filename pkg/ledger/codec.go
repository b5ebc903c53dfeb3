package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction names.
const (
	InstructionInitialize      = "initialize"
	InstructionUpdate          = "update"
	InstructionSetFunction     = "set_function"
	InstructionRefreshOracles  = "refresh_oracles"
	InstructionTriggerFunction = "trigger_function"
)

// Account type names as seen by the deployed program's discriminators.
const (
	accountProgramState = "MyProgramState"
	accountOracleState  = "MyOracleState"
	accountFeed         = "AggregatorAccountData"
)

// Discriminator prefixes instruction data and account data.
type Discriminator [8]byte

// InstructionDiscriminator returns the sighash of "global:<name>".
func InstructionDiscriminator(name string) Discriminator {
	var d Discriminator
	copy(d[:], bin.Sighash(bin.SIGHASH_GLOBAL_NAMESPACE, name))
	return d
}

// AccountDiscriminator returns the sighash of "account:<name>".
func AccountDiscriminator(name string) Discriminator {
	var d Discriminator
	copy(d[:], bin.Sighash(bin.SIGHASH_ACCOUNT_NAMESPACE, name))
	return d
}

var (
	programStateDiscriminator = AccountDiscriminator(accountProgramState)
	oracleStateDiscriminator  = AccountDiscriminator(accountOracleState)
	feedDiscriminator         = AccountDiscriminator(accountFeed)
)

var le = binary.LittleEndian

type instructionParams interface {
	encode(*bin.Encoder) error
}

// EncodeInstruction prefixes the encoded params with the instruction discriminator.
// params is nil for instructions without arguments.
func EncodeInstruction(name string, params instructionParams) ([]byte, error) {
	d := InstructionDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if params != nil {
		if err := params.encode(bin.NewBorshEncoder(buf)); err != nil {
			return nil, fmt.Errorf("encode %s params: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func (p InitializeParams) encode(enc *bin.Encoder) error {
	if err := enc.WriteUint8(p.Bump); err != nil {
		return err
	}
	return enc.WriteUint8(p.Bump2)
}

func decodeInitializeParams(data []byte) (InitializeParams, error) {
	var p InitializeParams
	dec := bin.NewBorshDecoder(data)
	var err error
	if p.Bump, err = dec.ReadUint8(); err != nil {
		return p, err
	}
	if p.Bump2, err = dec.ReadUint8(); err != nil {
		return p, err
	}
	return p, nil
}

func (p RefreshOraclesParams) encode(enc *bin.Encoder) error {
	if err := enc.WriteUint32(uint32(len(p.Rows)), le); err != nil {
		return err
	}
	for _, row := range p.Rows {
		if err := enc.WriteUint8(uint8(row.Symbol)); err != nil {
			return err
		}
		if err := encodeOracleData(enc, row.Data); err != nil {
			return err
		}
	}
	return nil
}

// rowSize is the encoded size of one Row.
const rowSize = 1 + 8 + 8 + 8

func decodeRefreshOraclesParams(data []byte) (RefreshOraclesParams, error) {
	var p RefreshOraclesParams
	dec := bin.NewBorshDecoder(data)
	n, err := dec.ReadUint32(le)
	if err != nil {
		return p, err
	}
	if int(n)*rowSize > dec.Remaining() {
		return p, fmt.Errorf("%d rows declared, %d bytes left", n, dec.Remaining())
	}
	p.Rows = make([]Row, n)
	for i := range p.Rows {
		sym, err := dec.ReadUint8()
		if err != nil {
			return p, err
		}
		p.Rows[i].Symbol = Symbol(sym)
		if p.Rows[i].Data, err = decodeOracleData(dec); err != nil {
			return p, err
		}
	}
	return p, nil
}

func encodeOracleData(enc *bin.Encoder, d OracleData) error {
	if err := enc.WriteInt64(d.OracleTimestamp, le); err != nil {
		return err
	}
	if err := enc.WriteUint64(d.OndoPrice, le); err != nil {
		return err
	}
	return enc.WriteUint64(d.TradedPrice, le)
}

func decodeOracleData(dec *bin.Decoder) (OracleData, error) {
	var d OracleData
	var err error
	if d.OracleTimestamp, err = dec.ReadInt64(le); err != nil {
		return d, err
	}
	if d.OndoPrice, err = dec.ReadUint64(le); err != nil {
		return d, err
	}
	if d.TradedPrice, err = dec.ReadUint64(le); err != nil {
		return d, err
	}
	return d, nil
}

func encodeAccount(d Discriminator, body func(*bin.Encoder) error) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := body(bin.NewBorshEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checkDiscriminator(data []byte, want Discriminator) (*bin.Decoder, error) {
	if len(data) < len(want) {
		return nil, ErrAccountDiscriminatorMismatch.Withf("account data is %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(want)], want[:]) {
		return nil, ErrAccountDiscriminatorMismatch.With(nil)
	}
	return bin.NewBorshDecoder(data[len(want):]), nil
}

func writeKey(enc *bin.Encoder, k solana.PublicKey) error {
	return enc.WriteBytes(k[:], false)
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// EncodeProgramState returns the account data of s.
func EncodeProgramState(s *ProgramState) ([]byte, error) {
	return encodeAccount(programStateDiscriminator, func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(s.Bump); err != nil {
			return err
		}
		if err := writeKey(enc, s.Authority); err != nil {
			return err
		}
		return writeKey(enc, s.BoundWriter)
	})
}

// DecodeProgramState parses program state account data.
func DecodeProgramState(data []byte) (*ProgramState, error) {
	dec, err := checkDiscriminator(data, programStateDiscriminator)
	if err != nil {
		return nil, err
	}
	var s ProgramState
	if s.Bump, err = dec.ReadUint8(); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if s.Authority, err = readKey(dec); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if s.BoundWriter, err = readKey(dec); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	return &s, nil
}

// EncodeOracleState returns the account data of s.
func EncodeOracleState(s *OracleState) ([]byte, error) {
	return encodeAccount(oracleStateDiscriminator, func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(s.Bump); err != nil {
			return err
		}
		return encodeOracleData(enc, s.USDYUSD)
	})
}

// DecodeOracleState parses oracle state account data.
func DecodeOracleState(data []byte) (*OracleState, error) {
	dec, err := checkDiscriminator(data, oracleStateDiscriminator)
	if err != nil {
		return nil, err
	}
	var s OracleState
	if s.Bump, err = dec.ReadUint8(); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if s.USDYUSD, err = decodeOracleData(dec); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	return &s, nil
}

// EncodeFeed returns the account data of f.
func EncodeFeed(f *FeedAccount) ([]byte, error) {
	return encodeAccount(feedDiscriminator, func(enc *bin.Encoder) error {
		if err := writeKey(enc, f.Authority); err != nil {
			return err
		}
		r := f.LatestConfirmedRound
		if err := enc.WriteUint32(r.NumSuccess, le); err != nil {
			return err
		}
		if err := enc.WriteUint32(r.NumError, le); err != nil {
			return err
		}
		mantissa, err := int128Bytes(r.Result.Mantissa)
		if err != nil {
			return err
		}
		if err := enc.WriteBytes(mantissa, false); err != nil {
			return err
		}
		if err := enc.WriteUint32(r.Result.Scale, le); err != nil {
			return err
		}
		if err := enc.WriteInt64(r.RoundOpenTimestamp, le); err != nil {
			return err
		}
		return enc.WriteUint64(r.RoundOpenSlot, le)
	})
}

// DecodeFeed parses feed account data.
func DecodeFeed(data []byte) (*FeedAccount, error) {
	dec, err := checkDiscriminator(data, feedDiscriminator)
	if err != nil {
		return nil, err
	}
	var f FeedAccount
	r := &f.LatestConfirmedRound
	if f.Authority, err = readKey(dec); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if r.NumSuccess, err = dec.ReadUint32(le); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if r.NumError, err = dec.ReadUint32(le); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	raw, err := dec.ReadNBytes(16)
	if err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	r.Result.Mantissa = int128FromBytes(raw)
	if r.Result.Scale, err = dec.ReadUint32(le); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if r.RoundOpenTimestamp, err = dec.ReadInt64(le); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	if r.RoundOpenSlot, err = dec.ReadUint64(le); err != nil {
		return nil, ErrAccountDidNotDeserialize.With(err)
	}
	return &f, nil
}

var (
	two128    = new(big.Int).Lsh(big.NewInt(1), 128)
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// int128Bytes encodes v as 16 little endian two's complement bytes.
func int128Bytes(v *big.Int) ([]byte, error) {
	out := make([]byte, 16)
	if v == nil {
		return out, nil
	}
	if v.Cmp(maxInt128) > 0 || v.Cmp(minInt128) < 0 {
		return nil, fmt.Errorf("mantissa %s overflows i128", v)
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	be := u.FillBytes(make([]byte, 16))
	for i := range be {
		out[i] = be[15-i]
	}
	return out, nil
}

func int128FromBytes(b []byte) *big.Int {
	be := make([]byte, 16)
	for i := range be {
		be[i] = b[15-i]
	}
	v := new(big.Int).SetBytes(be)
	if b[15]&0x80 != 0 {
		v.Sub(v, two128)
	}
	return v
}

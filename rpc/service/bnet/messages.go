package bnet

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var errWireType = errors.New("unexpected wire type")

// --------------------------------------------------------------------------
// Message types of the connect exchange
// --------------------------------------------------------------------------

// ProcessID identifies a process of either side
type ProcessID struct {
	Label uint32
	Epoch uint32
}

// BoundService is a (hash, id) pair a client declares for a service it exposes
type BoundService struct {
	Hash uint32
	ID   uint32
}

// BindRequest carries the bindings of a connect request
type BindRequest struct {
	// ImportedServiceHash lists the services the client wants to call
	ImportedServiceHash []uint32
	// ExportedService lists the services the client exposes
	ExportedService []BoundService
}

// BindResponse carries the resolved ids, one per requested hash
type BindResponse struct {
	ImportedServiceID []uint32
}

// ConnectRequest is the body of ConnectionService.Connect
type ConnectRequest struct {
	ClientID       *ProcessID
	BindRequest    *BindRequest
	UseBindlessRPC bool
}

// ConnectResponse is the reply to ConnectionService.Connect
type ConnectResponse struct {
	ServerID       ProcessID
	ClientID       *ProcessID
	BindResult     *uint32
	BindResponse   *BindResponse
	ServerTime     uint64
	UseBindlessRPC bool
}

// LogonRequest holds the fields of AuthenticationServer.Logon the server looks at
type LogonRequest struct {
	Program            string
	Platform           string
	Locale             string
	Email              string
	Version            string
	ApplicationVersion int32
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUvarint(b, num, protowire.EncodeBool(v))
}

func (m *ProcessID) Marshal() []byte {
	var b []byte
	b = appendUvarint(b, 1, uint64(m.Label))
	b = appendUvarint(b, 2, uint64(m.Epoch))
	return b
}

func (m *BoundService) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, m.Hash)
	b = appendUvarint(b, 2, uint64(m.ID))
	return b
}

func (m *BindRequest) Marshal() []byte {
	var b []byte
	if len(m.ImportedServiceHash) > 0 {
		var packed []byte
		for _, hash := range m.ImportedServiceHash {
			packed = protowire.AppendFixed32(packed, hash)
		}
		b = appendMessage(b, 1, packed)
	}
	for i := range m.ExportedService {
		b = appendMessage(b, 2, m.ExportedService[i].Marshal())
	}
	return b
}

func (m *BindResponse) Marshal() []byte {
	var b []byte
	if len(m.ImportedServiceID) > 0 {
		var packed []byte
		for _, id := range m.ImportedServiceID {
			packed = protowire.AppendVarint(packed, uint64(id))
		}
		b = appendMessage(b, 1, packed)
	}
	return b
}

func (m *ConnectRequest) Marshal() []byte {
	var b []byte
	if m.ClientID != nil {
		b = appendMessage(b, 1, m.ClientID.Marshal())
	}
	if m.BindRequest != nil {
		b = appendMessage(b, 2, m.BindRequest.Marshal())
	}
	if m.UseBindlessRPC {
		b = appendBool(b, 3, true)
	}
	return b
}

func (m *ConnectResponse) Marshal() []byte {
	var b []byte
	b = appendMessage(b, 1, m.ServerID.Marshal())
	if m.ClientID != nil {
		b = appendMessage(b, 2, m.ClientID.Marshal())
	}
	if m.BindResult != nil {
		b = appendUvarint(b, 3, uint64(*m.BindResult))
	}
	if m.BindResponse != nil {
		b = appendMessage(b, 4, m.BindResponse.Marshal())
	}
	b = appendUvarint(b, 6, m.ServerTime)
	if m.UseBindlessRPC {
		b = appendBool(b, 7, true)
	}
	return b
}

func (m *LogonRequest) Marshal() []byte {
	var b []byte
	for _, f := range []struct {
		num protowire.Number
		v   string
	}{{1, m.Program}, {2, m.Platform}, {3, m.Locale}, {4, m.Email}, {5, m.Version}} {
		if f.v == "" {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendString(b, f.v)
	}
	if m.ApplicationVersion != 0 {
		b = appendUvarint(b, 6, uint64(int64(m.ApplicationVersion)))
	}
	return b
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// field is a single decoded field, only the member matching typ is set
type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("field %d: %w %d", f.num, errWireType, f.typ)
	}
	return nil
}

// parseFields calls fn for every field of b, groups and fixed64 values are skipped
func parseFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *ProcessID) Unmarshal(b []byte) error {
	*m = ProcessID{}
	var hasLabel, hasEpoch bool
	err := parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			hasLabel = true
			m.Label = uint32(f.varint)
			return f.expect(protowire.VarintType)
		case 2:
			hasEpoch = true
			m.Epoch = uint32(f.varint)
			return f.expect(protowire.VarintType)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasLabel || !hasEpoch {
		return errors.New("process id requires label and epoch")
	}
	return nil
}

func (m *BoundService) Unmarshal(b []byte) error {
	*m = BoundService{}
	var hasHash, hasID bool
	err := parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			hasHash = true
			m.Hash = f.fixed32
			return f.expect(protowire.Fixed32Type)
		case 2:
			hasID = true
			m.ID = uint32(f.varint)
			return f.expect(protowire.VarintType)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasHash || !hasID {
		return errors.New("bound service requires hash and id")
	}
	return nil
}

func (m *BindRequest) Unmarshal(b []byte) error {
	*m = BindRequest{}
	return parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			// accepted packed and unpacked
			if f.typ == protowire.Fixed32Type {
				m.ImportedServiceHash = append(m.ImportedServiceHash, f.fixed32)
				return nil
			}
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			packed := f.bytes
			for len(packed) > 0 {
				hash, n := protowire.ConsumeFixed32(packed)
				if n < 0 {
					return fmt.Errorf("field 1: %w", protowire.ParseError(n))
				}
				m.ImportedServiceHash = append(m.ImportedServiceHash, hash)
				packed = packed[n:]
			}
		case 2:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			var bound BoundService
			if err := bound.Unmarshal(f.bytes); err != nil {
				return fmt.Errorf("field 2: %w", err)
			}
			m.ExportedService = append(m.ExportedService, bound)
		}
		return nil
	})
}

func (m *BindResponse) Unmarshal(b []byte) error {
	*m = BindResponse{}
	return parseFields(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		if f.typ == protowire.VarintType {
			m.ImportedServiceID = append(m.ImportedServiceID, uint32(f.varint))
			return nil
		}
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		packed := f.bytes
		for len(packed) > 0 {
			id, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return fmt.Errorf("field 1: %w", protowire.ParseError(n))
			}
			m.ImportedServiceID = append(m.ImportedServiceID, uint32(id))
			packed = packed[n:]
		}
		return nil
	})
}

func (m *ConnectRequest) Unmarshal(b []byte) error {
	*m = ConnectRequest{}
	return parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			m.ClientID = &ProcessID{}
			if err := m.ClientID.Unmarshal(f.bytes); err != nil {
				return fmt.Errorf("client_id: %w", err)
			}
		case 2:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			m.BindRequest = &BindRequest{}
			if err := m.BindRequest.Unmarshal(f.bytes); err != nil {
				return fmt.Errorf("bind_request: %w", err)
			}
		case 3:
			m.UseBindlessRPC = protowire.DecodeBool(f.varint)
			return f.expect(protowire.VarintType)
		}
		return nil
	})
}

func (m *ConnectResponse) Unmarshal(b []byte) error {
	*m = ConnectResponse{}
	hasServerID := false
	err := parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			hasServerID = true
			if err := m.ServerID.Unmarshal(f.bytes); err != nil {
				return fmt.Errorf("server_id: %w", err)
			}
		case 2:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			m.ClientID = &ProcessID{}
			if err := m.ClientID.Unmarshal(f.bytes); err != nil {
				return fmt.Errorf("client_id: %w", err)
			}
		case 3:
			result := uint32(f.varint)
			m.BindResult = &result
			return f.expect(protowire.VarintType)
		case 4:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			m.BindResponse = &BindResponse{}
			if err := m.BindResponse.Unmarshal(f.bytes); err != nil {
				return fmt.Errorf("bind_response: %w", err)
			}
		case 6:
			m.ServerTime = f.varint
			return f.expect(protowire.VarintType)
		case 7:
			m.UseBindlessRPC = protowire.DecodeBool(f.varint)
			return f.expect(protowire.VarintType)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasServerID {
		return errors.New("connect response requires server_id")
	}
	return nil
}

func (m *LogonRequest) Unmarshal(b []byte) error {
	*m = LogonRequest{}
	return parseFields(b, func(f field) error {
		var target *string
		switch f.num {
		case 1:
			target = &m.Program
		case 2:
			target = &m.Platform
		case 3:
			target = &m.Locale
		case 4:
			target = &m.Email
		case 5:
			target = &m.Version
		case 6:
			m.ApplicationVersion = int32(f.varint)
			return f.expect(protowire.VarintType)
		default:
			return nil
		}
		if err := f.expect(protowire.BytesType); err != nil {
			return err
		}
		*target = string(f.bytes)
		return nil
	})
}

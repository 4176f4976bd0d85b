package sinkpb

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire helpers. Every sub-message is marshaled to its own buffer and
// embedded as a length-delimited field, which is fine at harness scale.

func appendSub(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// ── Marshal ─────────────────────────────────────────────────────────

func marshalColumn(c Column) []byte {
	var b []byte
	b = appendStringField(b, 1, c.Name)
	b = appendVarintField(b, 2, uint64(c.DataType))
	return b
}

func marshalTableSchema(m *TableSchema) []byte {
	var b []byte
	for _, c := range m.Columns {
		b = appendSub(b, 1, marshalColumn(c))
	}
	if len(m.PkIndices) > 0 {
		var packed []byte
		for _, i := range m.PkIndices {
			packed = protowire.AppendVarint(packed, uint64(i))
		}
		b = appendSub(b, 2, packed)
	}
	return b
}

func marshalSinkConfig(m *SinkConfig) []byte {
	var b []byte
	b = appendStringField(b, 1, m.ConnectorType)
	// Sort map keys so marshaling is deterministic.
	keys := make([]string, 0, len(m.Properties))
	for k := range m.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = appendStringField(entry, 1, k)
		entry = appendStringField(entry, 2, m.Properties[k])
		b = appendSub(b, 2, entry)
	}
	if m.TableSchema != nil {
		b = appendSub(b, 3, marshalTableSchema(m.TableSchema))
	}
	return b
}

func marshalStartSink(m *StartSink) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.Format))
	if m.SinkConfig != nil {
		b = appendSub(b, 2, marshalSinkConfig(m.SinkConfig))
	}
	return b
}

func marshalRowOp(r RowOp) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(r.OpType))
	b = appendStringField(b, 2, r.Line)
	return b
}

func marshalJsonPayload(m *JsonPayload) []byte {
	var b []byte
	for _, r := range m.RowOps {
		b = appendSub(b, 1, marshalRowOp(r))
	}
	return b
}

func marshalStreamChunkPayload(m *StreamChunkPayload) []byte {
	var b []byte
	if len(m.BinaryData) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.BinaryData)
	}
	return b
}

func marshalWriteBatch(m *WriteBatch) ([]byte, error) {
	if (m.JsonPayload == nil) == (m.StreamChunkPayload == nil) {
		return nil, fmt.Errorf("write batch: exactly one payload must be set")
	}
	var b []byte
	b = appendVarintField(b, 1, m.BatchID)
	b = appendVarintField(b, 2, m.Epoch)
	if m.JsonPayload != nil {
		b = appendSub(b, 3, marshalJsonPayload(m.JsonPayload))
	}
	if m.StreamChunkPayload != nil {
		b = appendSub(b, 4, marshalStreamChunkPayload(m.StreamChunkPayload))
	}
	return b, nil
}

// MarshalBinary encodes the request in protobuf wire format.
func (m *SinkStreamRequest) MarshalBinary() ([]byte, error) {
	set := 0
	for _, ok := range []bool{m.Start != nil, m.StartEpoch != nil, m.Write != nil, m.Sync != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("sink stream request: exactly one variant must be set, got %d", set)
	}
	var b []byte
	switch {
	case m.Start != nil:
		b = appendSub(b, 1, marshalStartSink(m.Start))
	case m.StartEpoch != nil:
		b = appendSub(b, 2, appendVarintField(nil, 1, m.StartEpoch.Epoch))
	case m.Write != nil:
		body, err := marshalWriteBatch(m.Write)
		if err != nil {
			return nil, err
		}
		b = appendSub(b, 3, body)
	case m.Sync != nil:
		b = appendSub(b, 4, appendVarintField(nil, 1, m.Sync.Epoch))
	}
	return b, nil
}

// MarshalBinary encodes the response in protobuf wire format.
func (m *SinkStreamResponse) MarshalBinary() ([]byte, error) {
	set := 0
	for _, ok := range []bool{m.Start != nil, m.StartEpoch != nil, m.Write != nil, m.Sync != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("sink stream response: exactly one variant must be set, got %d", set)
	}
	var b []byte
	switch {
	case m.Start != nil:
		b = appendSub(b, 1, nil)
	case m.StartEpoch != nil:
		b = appendSub(b, 2, appendVarintField(nil, 1, m.StartEpoch.Epoch))
	case m.Write != nil:
		var body []byte
		body = appendVarintField(body, 1, m.Write.Epoch)
		body = appendVarintField(body, 2, m.Write.BatchID)
		b = appendSub(b, 3, body)
	case m.Sync != nil:
		b = appendSub(b, 4, appendVarintField(nil, 1, m.Sync.Epoch))
	}
	return b, nil
}

// ── Unmarshal ───────────────────────────────────────────────────────

// fieldScanner walks the top-level fields of one message body.
func scanFields(data []byte, visit func(num protowire.Number, typ protowire.Type, data []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		n, err := visit(num, typ, data)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

func consumeSub(data []byte) ([]byte, int) {
	return protowire.ConsumeBytes(data)
}

func unmarshalColumn(data []byte) (Column, error) {
	var c Column
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			c.Name = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			c.DataType = DataType(v)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
	})
	return c, err
}

func unmarshalTableSchema(data []byte) (*TableSchema, error) {
	m := &TableSchema{}
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			col, err := unmarshalColumn(v)
			if err != nil {
				return 0, fmt.Errorf("column: %w", err)
			}
			m.Columns = append(m.Columns, col)
			return n, nil
		case num == 2 && typ == protowire.BytesType: // packed
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			for len(v) > 0 {
				u, un := protowire.ConsumeVarint(v)
				if un < 0 {
					return 0, protowire.ParseError(un)
				}
				v = v[un:]
				m.PkIndices = append(m.PkIndices, uint32(u))
			}
			return n, nil
		case num == 2 && typ == protowire.VarintType: // unpacked
			u, n := protowire.ConsumeVarint(data)
			m.PkIndices = append(m.PkIndices, uint32(u))
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshalSinkConfig(data []byte) (*SinkConfig, error) {
	m := &SinkConfig{}
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			m.ConnectorType = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			var key, val string
			err := scanFields(v, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
				switch {
				case num == 1 && typ == protowire.BytesType:
					s, n := protowire.ConsumeString(data)
					key = s
					return n, nil
				case num == 2 && typ == protowire.BytesType:
					s, n := protowire.ConsumeString(data)
					val = s
					return n, nil
				default:
					return protowire.ConsumeFieldValue(num, typ, data), nil
				}
			})
			if err != nil {
				return 0, fmt.Errorf("properties entry: %w", err)
			}
			if m.Properties == nil {
				m.Properties = make(map[string]string)
			}
			m.Properties[key] = val
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			ts, err := unmarshalTableSchema(v)
			if err != nil {
				return 0, fmt.Errorf("table schema: %w", err)
			}
			m.TableSchema = ts
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshalStartSink(data []byte) (*StartSink, error) {
	m := &StartSink{}
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			m.Format = SinkPayloadFormat(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			cfg, err := unmarshalSinkConfig(v)
			if err != nil {
				return 0, fmt.Errorf("sink config: %w", err)
			}
			m.SinkConfig = cfg
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// unmarshalEpoch reads the single-uint64 messages (StartEpoch, SyncBatch
// and the epoch-only responses share this shape).
func unmarshalEpoch(data []byte) (uint64, error) {
	var epoch uint64
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(data)
			epoch = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, data), nil
	})
	return epoch, err
}

func unmarshalRowOp(data []byte) (RowOp, error) {
	var r RowOp
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			r.OpType = Op(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			r.Line = v
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
	})
	return r, err
}

func unmarshalWriteBatch(data []byte) (*WriteBatch, error) {
	m := &WriteBatch{}
	err := scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			m.BatchID = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			m.Epoch = v
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			p := &JsonPayload{}
			err := scanFields(v, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
				if num == 1 && typ == protowire.BytesType {
					rv, rn := consumeSub(data)
					if rn < 0 {
						return rn, nil
					}
					r, err := unmarshalRowOp(rv)
					if err != nil {
						return 0, fmt.Errorf("row op: %w", err)
					}
					p.RowOps = append(p.RowOps, r)
					return rn, nil
				}
				return protowire.ConsumeFieldValue(num, typ, data), nil
			})
			if err != nil {
				return 0, fmt.Errorf("json payload: %w", err)
			}
			m.JsonPayload = p
			return n, nil
		case num == 4 && typ == protowire.BytesType:
			v, n := consumeSub(data)
			if n < 0 {
				return n, nil
			}
			p := &StreamChunkPayload{}
			err := scanFields(v, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
				if num == 1 && typ == protowire.BytesType {
					bv, bn := protowire.ConsumeBytes(data)
					if bn < 0 {
						return bn, nil
					}
					p.BinaryData = append([]byte(nil), bv...)
					return bn, nil
				}
				return protowire.ConsumeFieldValue(num, typ, data), nil
			})
			if err != nil {
				return 0, fmt.Errorf("stream chunk payload: %w", err)
			}
			m.StreamChunkPayload = p
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalBinary decodes the request from protobuf wire format.
func (m *SinkStreamRequest) UnmarshalBinary(data []byte) error {
	*m = SinkStreamRequest{}
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
		v, n := consumeSub(data)
		if n < 0 {
			return n, nil
		}
		switch num {
		case 1:
			s, err := unmarshalStartSink(v)
			if err != nil {
				return 0, fmt.Errorf("start: %w", err)
			}
			m.Start = s
		case 2:
			epoch, err := unmarshalEpoch(v)
			if err != nil {
				return 0, fmt.Errorf("start epoch: %w", err)
			}
			m.StartEpoch = &StartEpoch{Epoch: epoch}
		case 3:
			w, err := unmarshalWriteBatch(v)
			if err != nil {
				return 0, fmt.Errorf("write: %w", err)
			}
			m.Write = w
		case 4:
			epoch, err := unmarshalEpoch(v)
			if err != nil {
				return 0, fmt.Errorf("sync: %w", err)
			}
			m.Sync = &SyncBatch{Epoch: epoch}
		}
		return n, nil
	})
}

// UnmarshalBinary decodes the response from protobuf wire format.
func (m *SinkStreamResponse) UnmarshalBinary(data []byte) error {
	*m = SinkStreamResponse{}
	return scanFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, data), nil
		}
		v, n := consumeSub(data)
		if n < 0 {
			return n, nil
		}
		switch num {
		case 1:
			m.Start = &StartResponse{}
		case 2:
			epoch, err := unmarshalEpoch(v)
			if err != nil {
				return 0, fmt.Errorf("start epoch response: %w", err)
			}
			m.StartEpoch = &StartEpochResponse{Epoch: epoch}
		case 3:
			w := &WriteResponse{}
			err := scanFields(v, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
				switch {
				case num == 1 && typ == protowire.VarintType:
					u, un := protowire.ConsumeVarint(data)
					w.Epoch = u
					return un, nil
				case num == 2 && typ == protowire.VarintType:
					u, un := protowire.ConsumeVarint(data)
					w.BatchID = u
					return un, nil
				default:
					return protowire.ConsumeFieldValue(num, typ, data), nil
				}
			})
			if err != nil {
				return 0, fmt.Errorf("write response: %w", err)
			}
			m.Write = w
		case 4:
			epoch, err := unmarshalEpoch(v)
			if err != nil {
				return 0, fmt.Errorf("sync response: %w", err)
			}
			m.Sync = &SyncResponse{Epoch: epoch}
		}
		return n, nil
	})
}

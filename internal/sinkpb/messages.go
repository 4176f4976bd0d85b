// Package sinkpb holds the wire types for the connector sink stream
// protocol, defined in proto/connector/v1/connector_service.proto.
//
// The messages are hand-written over protowire instead of being generated:
// the protocol is small and stable, and keeping the structs by hand avoids
// a codegen step in the build. Field numbers and names track the .proto
// file, which remains the source of truth for the wire format.
package sinkpb

// SinkPayloadFormat selects the payload encoding declared by StartSink and
// carried by every subsequent WriteBatch of the session.
type SinkPayloadFormat int32

const (
	FormatUnspecified SinkPayloadFormat = 0
	FormatJSON        SinkPayloadFormat = 1
	FormatStreamChunk SinkPayloadFormat = 2
)

func (f SinkPayloadFormat) String() string {
	switch f {
	case FormatJSON:
		return "JSON"
	case FormatStreamChunk:
		return "STREAM_CHUNK"
	default:
		return "SINK_PAYLOAD_FORMAT_UNSPECIFIED"
	}
}

// DataType is the column type enum of TableSchema.
type DataType int32

const (
	TypeUnspecified DataType = 0
	TypeInt16       DataType = 1
	TypeInt32       DataType = 2
	TypeInt64       DataType = 3
	TypeFloat       DataType = 4
	TypeDouble      DataType = 5
	TypeBoolean     DataType = 6
	TypeVarchar     DataType = 7
)

func (t DataType) String() string {
	switch t {
	case TypeInt16:
		return "INT16"
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeVarchar:
		return "VARCHAR"
	default:
		return "DATA_TYPE_UNSPECIFIED"
	}
}

// Op is the row operation kind of a JSON payload row.
type Op int32

const (
	OpUnspecified  Op = 0
	OpInsert       Op = 1
	OpDelete       Op = 2
	OpUpdateInsert Op = 3
	OpUpdateDelete Op = 4
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "INSERT"
	case OpDelete:
		return "DELETE"
	case OpUpdateInsert:
		return "UPDATE_INSERT"
	case OpUpdateDelete:
		return "UPDATE_DELETE"
	default:
		return "OP_UNSPECIFIED"
	}
}

// Column is one column of a TableSchema.
type Column struct {
	Name     string
	DataType DataType
}

// TableSchema describes the sink table: ordered columns plus the positions
// of the primary-key columns.
type TableSchema struct {
	Columns   []Column
	PkIndices []uint32
}

// SinkConfig carries the connector selection and its properties for one
// sink session. Immutable once sent in StartSink.
type SinkConfig struct {
	ConnectorType string
	Properties    map[string]string
	TableSchema   *TableSchema
}

// StartSink opens a sink session. It must be the first request on the
// stream and declares the payload format of every WriteBatch that follows.
type StartSink struct {
	Format     SinkPayloadFormat
	SinkConfig *SinkConfig
}

// StartEpoch begins epoch Epoch. Epochs are strictly increasing.
type StartEpoch struct {
	Epoch uint64
}

// RowOp is one row operation of a JSON payload.
type RowOp struct {
	OpType Op
	Line   string
}

// JsonPayload is a batch of row operations in JSON encoding.
type JsonPayload struct {
	RowOps []RowOp
}

// StreamChunkPayload is an opaque pre-encoded columnar batch. The harness
// never reinterprets BinaryData.
type StreamChunkPayload struct {
	BinaryData []byte
}

// WriteBatch writes one batch into the current epoch. Exactly one of
// JsonPayload and StreamChunkPayload is set, and it must match the format
// declared by StartSink.
type WriteBatch struct {
	BatchID uint64
	Epoch   uint64

	JsonPayload        *JsonPayload
	StreamChunkPayload *StreamChunkPayload
}

// SyncBatch closes epoch Epoch and asks the sink to persist everything
// written into it.
type SyncBatch struct {
	Epoch uint64
}

// SinkStreamRequest is the request union. Exactly one field is set.
type SinkStreamRequest struct {
	Start      *StartSink
	StartEpoch *StartEpoch
	Write      *WriteBatch
	Sync       *SyncBatch
}

// Kind names the set variant, for logging and metrics labels.
func (m *SinkStreamRequest) Kind() string {
	switch {
	case m.Start != nil:
		return "start"
	case m.StartEpoch != nil:
		return "start_epoch"
	case m.Write != nil:
		return "write"
	case m.Sync != nil:
		return "sync"
	default:
		return "empty"
	}
}

type (
	StartResponse      struct{}
	StartEpochResponse struct{ Epoch uint64 }
	WriteResponse      struct {
		Epoch   uint64
		BatchID uint64
	}
	SyncResponse struct{ Epoch uint64 }
)

// SinkStreamResponse is the response union. Exactly one field is set; the
// service answers every request positionally with the matching variant.
type SinkStreamResponse struct {
	Start      *StartResponse
	StartEpoch *StartEpochResponse
	Write      *WriteResponse
	Sync       *SyncResponse
}

// Kind names the set variant.
func (m *SinkStreamResponse) Kind() string {
	switch {
	case m.Start != nil:
		return "start"
	case m.StartEpoch != nil:
		return "start_epoch"
	case m.Write != nil:
		return "write"
	case m.Sync != nil:
		return "sync"
	default:
		return "empty"
	}
}

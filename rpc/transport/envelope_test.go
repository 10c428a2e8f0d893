package transport

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/firestarter/rpc/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestClassifyTotal(t *testing.T) {
	tests := []struct {
		name   string
		header codec.Header
		want   Kind
	}{
		{"response without method", codec.Header{ServiceID: 254}, KindResponse},
		{"response with method zero", codec.Header{ServiceID: 254, MethodID: proto.Uint32(0)}, KindResponse},
		{"reserved service with method", codec.Header{ServiceID: 254, MethodID: proto.Uint32(1)}, KindRequest},
		{"connection service", codec.Header{ServiceID: 0, MethodID: proto.Uint32(1)}, KindRequest},
		{"service without method", codec.Header{ServiceID: 3}, KindRequest},
		{"neighbour of reserved id", codec.Header{ServiceID: 253, MethodID: proto.Uint32(0)}, KindRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := codec.NewFrame(tt.header, []byte("x"))
			assert.Equal(t, tt.want, Classify(f))

			_, isReq := AsRequest(f)
			_, isResp := AsResponse(f)
			assert.True(t, isReq != isResp, "exactly one tag must apply")
			assert.Equal(t, tt.want == KindRequest, isReq)
		})
	}
}

func TestBuildResponse(t *testing.T) {
	req := NewRequest(codec.Header{ServiceID: 0, MethodID: proto.Uint32(3), Token: 77, ObjectID: proto.Uint64(9)}, []byte("ping"))
	resp := BuildResponse(req, []byte("pong"))

	assert.Equal(t, KindResponse, Classify(resp.Frame()))
	assert.Equal(t, uint32(77), resp.Token())
	assert.Equal(t, ResponseServiceID, resp.Header().ServiceID)
	method, ok := resp.Header().Method()
	require.True(t, ok)
	assert.Equal(t, ResponseMethodID, method)
	assert.Equal(t, uint32(4), resp.Header().Size)
	assert.Equal(t, []byte("pong"), resp.Body())
}

func TestBuildEmptyResponse(t *testing.T) {
	req := NewRequest(codec.Header{ServiceID: 3, MethodID: proto.Uint32(1), Token: 5}, []byte("logon"))
	resp := BuildEmptyResponse(req)

	assert.Equal(t, KindResponse, Classify(resp.Frame()))
	assert.Equal(t, uint32(5), resp.Token())
	assert.Zero(t, resp.Header().Size)
	assert.NotNil(t, resp.Body())
	assert.Empty(t, resp.Body())
}

func TestResponseSurvivesCodec(t *testing.T) {
	req := NewRequest(codec.Header{ServiceID: 0, MethodID: proto.Uint32(1), Token: 12}, nil)
	resp := BuildResponse(req, []byte{1, 2, 3})

	var buf bytes.Buffer
	c := codec.NewCodec(codec.DefaultLimits())
	require.NoError(t, c.Encode(resp.Frame(), &buf))
	f, ok, err := c.Decode(&buf)
	require.NoError(t, err)
	require.True(t, ok)

	decoded, ok := AsResponse(f)
	require.True(t, ok)
	assert.Equal(t, uint32(12), decoded.Token())
}

func TestInternalReaddress(t *testing.T) {
	req := NewRequest(codec.Header{ServiceID: 0, MethodID: proto.Uint32(3), Token: 8, ObjectID: proto.Uint64(2)}, []byte("body"))
	fwd := Internal{ServiceID: 3, MethodID: 1, Request: req}.Readdress()

	assert.Equal(t, uint32(3), fwd.Header().ServiceID)
	method, ok := fwd.Header().Method()
	require.True(t, ok)
	assert.Equal(t, uint32(1), method)
	assert.Equal(t, uint32(8), fwd.Token())
	assert.Equal(t, proto.Uint64(2), fwd.Header().ObjectID)
	assert.Equal(t, []byte("body"), fwd.Body())

	// readdressing leaves the source request untouched
	method, _ = req.Header().Method()
	assert.Equal(t, uint32(3), method)
}

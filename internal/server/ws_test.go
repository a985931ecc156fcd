package server

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/explorerd/explorerd/internal/hub"
	"github.com/explorerd/explorerd/internal/models"
	"github.com/explorerd/explorerd/internal/wsproto"
)

// maskedTextFrame builds one RFC 6455 client→server masked text frame, the
// shape wsproto.Conn.ReadMessage requires (internal/wsproto/frame.go). Only
// short (<126 byte) payloads are needed for these tests.
func maskedTextFrame(payload []byte) []byte {
	if len(payload) >= 126 {
		panic("maskedTextFrame: payload too long for this test helper")
	}
	key := [4]byte{0x12, 0x34, 0x56, 0x78}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ key[i%4]
	}
	frame := make([]byte, 0, 6+len(payload))
	frame = append(frame, 0x80|0x1)                 // FIN + opText
	frame = append(frame, 0x80|byte(len(payload)))  // masked + length
	frame = append(frame, key[:]...)
	frame = append(frame, masked...)
	return frame
}

func TestReadPump_ChangeModel_DispatchesModelIdField(t *testing.T) {
	reg := &models.Registry{Models: []models.Model{
		{ID: "m", Provider: "p"},
		{ID: "m2", Provider: "p2"},
	}}
	eng := newTestEngineWithRegistry(t, reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	conn := wsproto.NewConn(serverSide, bufio.NewReadWriter(bufio.NewReader(serverSide), bufio.NewWriter(serverSide)))
	client := hub.NewClient("test-client", clientOutboxSize)
	if _, err := eng.Connect(client); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		readPump(eng, conn, client, logger)
		close(done)
	}()

	payload, err := json.Marshal(map[string]string{
		"type":     "change_model",
		"modelId":  "m2",
		"provider": "p2",
	})
	if err != nil {
		t.Fatalf("marshaling frame: %v", err)
	}
	if _, err := clientSide.Write(maskedTextFrame(payload)); err != nil {
		t.Fatalf("writing frame: %v", err)
	}

	select {
	case msg := <-client.Outbox():
		var decoded map[string]any
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if decoded["type"] != "model_changed" {
			t.Fatalf("expected a model_changed broadcast, got %v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change_model dispatch")
	}

	st := eng.GetState()
	if st.Model != "m2" || st.Provider != "p2" {
		t.Fatalf("GetState() = model %q provider %q, want m2/p2 (hub inboundMessage.ModelID's json tag must be \"modelId\", not \"model\")", st.Model, st.Provider)
	}

	clientSide.Close()
	<-done
}

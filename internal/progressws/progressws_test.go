package progressws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/model"
	"github.com/kadirpekel/caseflow/internal/progressbus"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := progressbus.New()
	handler := New(bus)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeHTTP))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe-case-file", CaseFileID: "case-1"}))

	require.Eventually(t, func() bool { return bus.SubscriberCount("case-1") == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(model.ProgressEvent{
		Kind:       model.EventDocumentComplete,
		CaseID:     "case-1",
		DocumentID: "doc-1",
		Filename:   "notes.txt",
		Percent:    100,
		Timestamp:  time.Now(),
	})

	var payload eventPayload
	require.NoError(t, conn.ReadJSON(&payload))
	require.Equal(t, "document:progress", payload.Event)
	require.Equal(t, "case-1", payload.Data.CaseFileID)
	require.Equal(t, "doc-1", payload.Data.DocumentID)
	require.Equal(t, 100, payload.Data.Progress)
}

func TestUnsubscribeStopsForwarding(t *testing.T) {
	bus := progressbus.New()
	handler := New(bus)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeHTTP))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe-case-file", CaseFileID: "case-1"}))
	require.Eventually(t, func() bool { return bus.SubscriberCount("case-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "unsubscribe-case-file", CaseFileID: "case-1"}))
	require.Eventually(t, func() bool { return bus.SubscriberCount("case-1") == 0 }, time.Second, 10*time.Millisecond)
}

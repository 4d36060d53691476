package relay

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/document"
	"github.com/roach88/gisdoc/internal/presence"
	"github.com/roach88/gisdoc/internal/store"
	"github.com/roach88/gisdoc/internal/testutil"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// startRelay runs a hub and an httptest server over it.
func startRelay(t *testing.T, log OpLog, broker Broker) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(log, broker, WithLogger(testutil.Logger()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	srv := httptest.NewServer(NewServer(hub, WithServerLogger(testutil.Logger())).Handler())
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

func wsURL(srv *httptest.Server, docID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + docID
}

type peer struct {
	doc       *document.Document
	awareness *presence.Awareness
	client    *Client
}

func newPeerDoc(replica string) *document.Document {
	return testutil.NewDocument(replica)
}

// connect dials url with doc and waits for the initial sync.
func connect(t *testing.T, url string, doc *document.Document) *peer {
	t.Helper()
	aw := presence.New(doc.ReplicaID())
	c, err := Dial(context.Background(), url, doc, aw, WithClientLogger(testutil.Logger()))
	require.NoError(t, err)
	go c.Run(context.Background())
	t.Cleanup(func() { c.Close() })

	select {
	case <-c.Synced():
	case <-time.After(waitFor):
		t.Fatalf("%s: no sync from relay", doc.ReplicaID())
	}
	return &peer{doc: doc, awareness: aw, client: c}
}

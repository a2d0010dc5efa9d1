package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTwilioSenderSend(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		gotForm = map[string]string{
			"To":   r.PostForm.Get("To"),
			"From": r.PostForm.Get("From"),
			"Body": r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42"}`))
	}))
	defer srv.Close()

	s := NewTwilioSender("AC123", "token", "whatsapp:+14155238886")
	s.BaseURL = srv.URL

	sid, err := s.Send(context.Background(), "whatsapp:+447700900000", "hello")
	require.NoError(t, err)
	assert.Equal(t, "SM42", sid)
	assert.Equal(t, "whatsapp:+447700900000", gotForm["To"])
	assert.Equal(t, "whatsapp:+14155238886", gotForm["From"])
	assert.Equal(t, "hello", gotForm["Body"])
}

func TestTwilioSenderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":20003,"message":"Authentication Error"}`))
	}))
	defer srv.Close()

	s := NewTwilioSender("AC123", "bad", "whatsapp:+14155238886")
	s.BaseURL = srv.URL

	_, err := s.Send(context.Background(), "whatsapp:+447700900000", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication Error")
	assert.Contains(t, err.Error(), "20003")
}

type scriptedSender struct {
	failAfter int // fail on the Nth call (1-based); 0 = never fail
	calls     int
	bodies    []string
}

func (s *scriptedSender) Send(_ context.Context, _, body string) (string, error) {
	s.calls++
	if s.failAfter > 0 && s.calls >= s.failAfter {
		return "", assert.AnError
	}
	s.bodies = append(s.bodies, body)
	return "SM1", nil
}

func TestDispatcherStopsAtFirstFailure(t *testing.T) {
	sender := &scriptedSender{failAfter: 2}
	d := NewDispatcher(sender, "whatsapp:+447700900000", 120, zap.NewNop().Sugar())

	blocks := make([]string, 6)
	for i := range blocks {
		blocks[i] = "block " + string(rune('a'+i)) + " with some padding text"
	}
	err := d.Dispatch(context.Background(), Message{Header: "hdr", Blocks: blocks})

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Sent)
	assert.Greater(t, de.Total, 1)
	assert.Len(t, sender.bodies, 1)
}

func TestDispatcherSendsAllParts(t *testing.T) {
	sender := &scriptedSender{}
	d := NewDispatcher(sender, "whatsapp:+447700900000", 1600, zap.NewNop().Sugar())

	require.NoError(t, d.Dispatch(context.Background(), Message{Header: "only part"}))
	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "only part", sender.bodies[0])
}

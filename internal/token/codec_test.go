package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-task-manager/internal/model"
)

const (
	testSecret = "test-secret"
	testIssuer = "go-task-manager"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, opts ...Option) (*Codec, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := NewCodec(testSecret, testIssuer, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)

	return codec, clock
}

func aliceIdentity() model.Identity {
	return model.Identity{
		SubjectID:   42,
		DisplayName: "alice",
		Email:       "alice@example.com",
		Role:        model.RoleUser,
	}
}

func TestNewCodec(t *testing.T) {
	t.Parallel()

	_, err := NewCodec("", testIssuer)
	require.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewCodec(testSecret, "")
	require.ErrorIs(t, err, ErrMissingIssuer)

	codec, err := NewCodec(testSecret, testIssuer)
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, codec.TTL())
	require.Equal(t, testIssuer, codec.Issuer())
}

func TestIssueWireFormat(t *testing.T) {
	t.Parallel()

	codec, clock := newTestCodec(t)

	signed, err := codec.Issue(aliceIdentity())
	require.NoError(t, err)

	segments := strings.Split(signed, ".")
	require.Len(t, segments, 3)
	require.NotContains(t, signed, "=")

	headerJSON, err := base64.RawURLEncoding.DecodeString(segments[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"alg":"HS256","typ":"JWT"}`, string(headerJSON))

	payloadJSON, err := base64.RawURLEncoding.DecodeString(segments[1])
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(payloadJSON, &payload))
	require.EqualValues(t, 42, payload["user_id"])
	require.Equal(t, "alice", payload["username"])
	require.Equal(t, "alice@example.com", payload["email"])
	require.Equal(t, "user", payload["role"])
	require.Equal(t, testIssuer, payload["iss"])
	require.EqualValues(t, clock.now.Unix(), payload["iat"])
	require.EqualValues(t, clock.now.Add(DefaultTTL).Unix(), payload["exp"])
}

func TestIssueIsDeterministic(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec(t)

	first, err := codec.Issue(aliceIdentity())
	require.NoError(t, err)
	second, err := codec.Issue(aliceIdentity())
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	codec, _ := newTestCodec(t)
	signed, err := codec.Issue(aliceIdentity())
	require.NoError(t, err)

	t.Run("returns the three parts", func(t *testing.T) {
		parts, err := codec.Decode(signed)
		require.NoError(t, err)

		segments := strings.Split(signed, ".")
		require.Equal(t, segments[0]+"."+segments[1], parts.SigningInput)
		require.Equal(t, segments[2], parts.Signature)
		require.Equal(t, "HS256", parts.Header["alg"])
		require.Equal(t, aliceIdentity(), parts.Claims.Identity())
	})

	cases := map[string]string{
		"empty":                "",
		"two segments":         "abc.def",
		"four segments":        signed + ".extra",
		"header not base64":    "!!!." + strings.Split(signed, ".")[1] + ".sig",
		"payload not base64":   strings.Split(signed, ".")[0] + ".%%%.sig",
		"payload not json":     strings.Split(signed, ".")[0] + "." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig",
		"user_id wrong type":   strings.Split(signed, ".")[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"user_id":"forty-two"}`)) + ".sig",
		"header not an object": base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + "." + strings.Split(signed, ".")[1] + ".sig",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(input)
			require.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

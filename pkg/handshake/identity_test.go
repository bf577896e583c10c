package handshake

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEncodeParseUID(t *testing.T) {
	tests := []struct {
		uid     uint32
		encoded string
	}{
		{0, "30"},
		{1000, "31303030"},
		{4294967295, "34323934393637323935"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.encoded, EncodeUID(tt.uid))
		uid, err := ParseUID(tt.encoded)
		require.NoError(t, err)
		assert.Equal(t, tt.uid, uid)
	}
}

func TestParseUIDInvalid(t *testing.T) {
	for _, s := range []string{"", "3", "zz", "3a", "2d31", "3432393439363732393536"} {
		_, err := ParseUID(s)
		assert.ErrorIs(t, err, ErrInvalidUID, "ParseUID(%q)", s)
	}
}

func TestGUID(t *testing.T) {
	g := NewGUID()
	assert.False(t, g.IsZero())
	assert.Len(t, g.String(), 32)
	assert.Equal(t, strings.ToLower(g.String()), g.String())

	parsed, err := ParseGUID(g.String())
	require.NoError(t, err)
	assert.Equal(t, g, parsed)

	assert.NotEqual(t, g, NewGUID(), "two GUIDs should differ")
}

func TestParseGUIDInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", strings.Repeat("g", 32), strings.Repeat("a", 33)} {
		_, err := ParseGUID(s)
		assert.ErrorIs(t, err, ErrInvalidGUID, "ParseGUID(%q)", s)
	}
}

func TestMechanism(t *testing.T) {
	for _, m := range []Mechanism{MechanismExternal, MechanismCookieSHA1, MechanismAnonymous} {
		parsed, err := ParseMechanism(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMechanism("KERBEROS_V4")
	assert.ErrorIs(t, err, ErrUnknownMechanism)

	assert.Equal(t, "REJECTED EXTERNAL ANONYMOUS\r\n", rejectedLine([]Mechanism{MechanismExternal, MechanismAnonymous}))
}

func TestServerConfigYAML(t *testing.T) {
	input := `
guid: 1d1f3d6e0c8a4c5d9b2b8f7a6e5d4c3b
clientUID: 1000
mechanisms: [EXTERNAL, ANONYMOUS]
allowUnixFD: true
maxLineLength: 512
`
	var cfg ServerConfig
	require.NoError(t, yaml.Unmarshal([]byte(input), &cfg))
	assert.Equal(t, testGUID, cfg.GUID)
	assert.Equal(t, uint32(1000), cfg.ClientUID)
	assert.Equal(t, []Mechanism{MechanismExternal, MechanismAnonymous}, cfg.Mechanisms)
	assert.True(t, cfg.AllowUnixFD)
	assert.NoError(t, cfg.Validate())

	var bad ServerConfig
	err := yaml.Unmarshal([]byte("guid: nothex"), &bad)
	assert.True(t, errors.Is(err, ErrInvalidGUID), "got %v", err)
}

func TestConfigValidate(t *testing.T) {
	client := DefaultClientConfig()
	assert.NoError(t, client.Validate())
	client.MaxLineLength = 0
	assert.ErrorIs(t, client.Validate(), ErrInvalidConfig)

	server := DefaultServerConfig()
	assert.NoError(t, server.Validate())

	noGUID := server
	noGUID.GUID = GUID{}
	assert.ErrorIs(t, noGUID.Validate(), ErrInvalidConfig)

	noExternal := server
	noExternal.Mechanisms = []Mechanism{MechanismAnonymous}
	assert.ErrorIs(t, noExternal.Validate(), ErrInvalidConfig)
}

package device

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMAC(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    MAC
		wantErr bool
	}{
		{
			name:  "lowercase colon form",
			input: "aa:bb:cc:dd:ee:ff",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "uppercase colon form",
			input: "AA:BB:CC:DD:EE:FF",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "hyphen separated",
			input: "aa-bb-cc-dd-ee-ff",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "surrounding whitespace",
			input: "  aa:bb:cc:dd:ee:ff\t",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:    "garbage",
			input:   "not-a-mac",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "64-bit EUI",
			input:   "02:00:5e:10:00:00:00:01",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMAC(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMACRoundTrip(t *testing.T) {
	a, err := ParseMAC("aa-bb-cc-dd-ee-ff")
	require.NoError(t, err)
	b, err := ParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.Equal(t, a, b, "separator and case variants must normalize to the same key")
}

func TestMACClassification(t *testing.T) {
	broadcast := MAC("ff:ff:ff:ff:ff:ff")
	assert.True(t, broadcast.IsBroadcast())
	assert.True(t, broadcast.IsMulticast())

	multicast := MAC("01:00:5e:00:00:fb")
	assert.False(t, multicast.IsBroadcast())
	assert.True(t, multicast.IsMulticast())

	unicast := MAC("aa:bb:cc:dd:ee:ff")
	assert.False(t, unicast.IsBroadcast())
	assert.False(t, unicast.IsMulticast())
}

func TestObservationSetLastSeenIPWins(t *testing.T) {
	now := time.Now()
	set := make(ObservationSet)
	set.Add(Observation{MAC: "aa:bb:cc:dd:ee:ff", IP: net.ParseIP("192.168.1.10"), SeenAt: now})
	set.Add(Observation{MAC: "aa:bb:cc:dd:ee:ff", IP: net.ParseIP("192.168.1.20"), SeenAt: now})

	require.Len(t, set, 1)
	assert.Equal(t, "192.168.1.20", set["aa:bb:cc:dd:ee:ff"].IP.String())
}

func TestObservationSetMACsSorted(t *testing.T) {
	set := make(ObservationSet)
	set.Add(Observation{MAC: "cc:cc:cc:cc:cc:cc"})
	set.Add(Observation{MAC: "aa:aa:aa:aa:aa:aa"})
	set.Add(Observation{MAC: "bb:bb:bb:bb:bb:bb"})

	macs := set.MACs()
	assert.Equal(t, []MAC{"aa:aa:aa:aa:aa:aa", "bb:bb:bb:bb:bb:bb", "cc:cc:cc:cc:cc:cc"}, macs)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelNormal, level)

	for _, valid := range []string{"normal", "silent", "vibrate", "timeSensitive"} {
		level, err := ParseLevel(valid)
		require.NoError(t, err)
		assert.Equal(t, Level(valid), level)
	}

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	policy := Policy{MAC: "aa:bb:cc:dd:ee:ff", DisplayName: "laptop", Level: LevelSilent}

	ev := NewEvent("aa:bb:cc:dd:ee:ff", EventArrived, at, policy)
	assert.NotEqual(t, ev.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, EventArrived, ev.Kind)
	assert.Equal(t, at, ev.OccurredAt)
	assert.Equal(t, policy, ev.Policy)
}

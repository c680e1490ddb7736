package encoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnicodeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "backup", "Ärenden", "резервный", "日本語"} {
		got, err := FromUnicodeString(ToUnicode(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestToUnicodeLittleEndian(t *testing.T) {
	assert.Equal(t, []byte{'A', 0, 'B', 0}, ToUnicode("AB"))
}

func TestFromUnicodeStringOddLength(t *testing.T) {
	_, err := FromUnicodeString([]byte{0x41, 0x00, 0x42})
	assert.Error(t, err)
}

func TestFiletimeToTime(t *testing.T) {
	// 2023-01-01 00:00:00 UTC as FILETIME.
	ft := uint64(133170048000000000)
	got := FiletimeToTime(ft)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestFiletimeEpoch(t *testing.T) {
	assert.Equal(t, time.Unix(0, 0).UTC(), FiletimeToTime(116444736000000000))
}

func TestTimeToFiletimeRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond).UTC()
	assert.Equal(t, now, FiletimeToTime(TimeToFiletime(now)))
}

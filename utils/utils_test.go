package utils

import (
	"fmt"
	"road-editor/model"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalToGeoRoundTrip(t *testing.T) {
	origin := model.Origin{Lat: 31.2304, Lon: 121.4737}
	p := LocalToGeo(origin, 1200, -350)
	x, y := GeoToLocal(origin, p)
	assert.InDelta(t, 1200, x, 1e-6)
	assert.InDelta(t, -350, y, 1e-6)
}

func TestLocalToGeoMatchesHaversine(t *testing.T) {
	origin := model.Origin{Lat: 48.0, Lon: 11.0}
	p := LocalToGeo(origin, 0, 1000)
	d := HaversineDistance(origin, p)
	assert.InDelta(t, 1000, d, 0.5)
}

func TestTransverseMercator(t *testing.T) {
	s := TransverseMercator(model.Origin{Lat: 52.5, Lon: 13.4})
	assert.True(t, strings.HasPrefix(s, "+proj=tmerc"))
	assert.Contains(t, s, "+lat_0=52.5")
	assert.Contains(t, s, "+lon_0=13.4")
}

func TestPassword(t *testing.T) {
	hashed, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hashed, "secret123"))
	assert.False(t, CheckPassword(hashed, "secret124"))
}

func TestSetLogger(t *testing.T) {
	var lines []string
	old := SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer SetLogger(old)

	LogWarn("road %s skipped", "7")
	require.Len(t, lines, 1)
	assert.Equal(t, "[WARN] road 7 skipped", lines[0])

	SetLogger(nil)
	LogInfo("dropped")
	assert.Len(t, lines, 1)
}

func TestSetLoggerConcurrent(t *testing.T) {
	var count atomic.Int64
	old := SetLogger(func(string, ...interface{}) { count.Add(1) })
	defer SetLogger(old)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				LogInfo("rebuild %d", j)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		SetLogger(func(string, ...interface{}) { count.Add(1) })
	}
	wg.Wait()
	assert.Equal(t, int64(800), count.Load())
}

package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider_Fetch(t *testing.T) {
	p := NewStaticProvider("account", map[string]interface{}{
		"company_name": "Acme",
	})

	data, err := p.Fetch(context.Background(), "cust-1", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme", data["company_name"])
	assert.Equal(t, "cust-1", data["customer_id"])
	assert.Equal(t, 1, p.FetchCount())
}

func TestStaticProvider_SnapshotIsACopy(t *testing.T) {
	p := NewStaticProvider("account", map[string]interface{}{
		"company_name": "Acme",
	})

	first, err := p.Fetch(context.Background(), "cust-1", "")
	require.NoError(t, err)
	first["company_name"] = "mutated"

	second, err := p.Fetch(context.Background(), "cust-1", "")
	require.NoError(t, err)
	assert.Equal(t, "Acme", second["company_name"])
}

func TestStaticProvider_ErrorInjection(t *testing.T) {
	boom := errors.New("boom")
	p := NewStaticProvider("account", nil).WithError(boom)

	_, err := p.Fetch(context.Background(), "cust-1", "")
	assert.Equal(t, boom, err)
	assert.Equal(t, boom, p.HealthCheck(context.Background()))
}

func TestStaticProvider_LatencyHonorsContext(t *testing.T) {
	p := NewStaticProvider("account", nil).WithLatency(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Fetch(ctx, "cust-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

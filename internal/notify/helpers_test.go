package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
)

func orderWithoutItems() domain.Order {
	return domain.Order{ID: "order-1", Status: domain.OrderStatusPending}
}

func mustRecord(t *testing.T, evt contracts.Event) []byte {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return data
}

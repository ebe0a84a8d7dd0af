package messaging

import (
	"slices"
	"testing"
)

func TestHeaderCarrier(t *testing.T) {
	t.Run("set then get", func(t *testing.T) {
		carrier := headerCarrier{}
		carrier.Set("traceparent", "00-abc-def-01")

		if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
			t.Errorf("unexpected value: %s", got)
		}
	})

	t.Run("missing key returns empty", func(t *testing.T) {
		carrier := headerCarrier{}

		if got := carrier.Get("traceparent"); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})

	t.Run("ignores non-string values", func(t *testing.T) {
		carrier := headerCarrier{"retries": int32(3)}

		if got := carrier.Get("retries"); got != "" {
			t.Errorf("expected empty string for non-string header, got %s", got)
		}
	})

	t.Run("keys lists all headers", func(t *testing.T) {
		carrier := headerCarrier{"a": "1", "b": int64(2)}

		keys := carrier.Keys()
		slices.Sort(keys)
		if !slices.Equal(keys, []string{"a", "b"}) {
			t.Errorf("unexpected keys: %v", keys)
		}
	})
}

package messaging

// headerCarrier adapts AMQP message headers to the OpenTelemetry text map
// propagation interface. Non-string header values are ignored.
type headerCarrier map[string]any

func (c headerCarrier) Get(key string) string {
	if value, ok := c[key]; ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	return keys
}

package msgpack

type M map[string]any

// Error is rendered as {"error": "..."}.
type Error string

func envelope(data any) any {
	switch v := data.(type) {
	case Error:
		return M{"error": string(v)}
	case string:
		return M{"message": v}
	}
	return data
}

package logging

import "log/slog"

// Domain identifiers

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Device(id string) slog.Attr {
	return slog.String("device_id", id)
}

func Item(id string) slog.Attr {
	return slog.String("item_id", id)
}

func Fingerprint(hash string) slog.Attr {
	return slog.String("content_hash", hash)
}

func CloseCode(code int) slog.Attr {
	return slog.Int("close_code", code)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}

// Package canonical реализует детерминированную сериализацию и хеширование событий журнала.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TimestampLayout это формат created_at, участвующий в хеше: ISO-8601 в UTC с миллисекундами.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const separator = "|"

// Timestamp форматирует момент времени так, как он входит в прообраз хеша.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Marshal возвращает каноническое JSON-представление v: ключи объектов отсортированы
// на всех уровнях вложенности, порядок элементов массивов сохраняется.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var buf bytes.Buffer
	if err := write(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest вычисляет sha256 от prevHash|type|canonicalPayload|createdAt в виде hex-строки.
func Digest(prevHash, eventType string, payload any, createdAt string) (string, error) {
	canon, err := Marshal(payload)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(separator))
	h.Write([]byte(eventType))
	h.Write([]byte(separator))
	h.Write(canon)
	h.Write([]byte(separator))
	h.Write([]byte(createdAt))

	return hex.EncodeToString(h.Sum(nil)), nil
}

func write(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := write(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := write(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string:
		return writeString(buf, t)
	case json.Number:
		// Числа приводятся к float64, чтобы "55", "55.0" и "5.5e1" давали одну запись.
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("parse number %q: %w", t.String(), err)
		}
		b, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode number %q: %w", t.String(), err)
		}
		buf.Write(b)
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("unsupported json value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode string: %w", err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

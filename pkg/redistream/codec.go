// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package redistream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	jms "github.com/GwynCerbin/go_jms"
)

// Field constants of a stream entry.
const (
	fieldBody     = "body"
	fieldHeader   = "h:"
	fieldStreamID = "stream-id"
)

// entryValues renders msg as the field set of one XADD.
func entryValues(msg *jms.Message) (map[string]any, error) {
	frame, err := jms.EncodeFrame(msg)
	if err != nil {
		return nil, err
	}

	vals := make(map[string]any, len(frame.Headers)+1)
	for k, v := range frame.Headers {
		vals[fieldHeader+k] = v
	}
	// raw payload bytes, binary safe
	vals[fieldBody] = frame.Body

	return vals, nil
}

// decodeEntry rebuilds the message stored in x. The entry id is kept in the
// stream-id header.
func decodeEntry(p jms.Prefixes, x redis.XMessage) (*jms.Message, error) {
	f := jms.Frame{
		Command: jms.CommandMessage,
		Headers: make(map[string]string, len(x.Values)),
	}

	for k, v := range x.Values {
		switch {
		case k == fieldBody:
			f.Body = asBytes(v)
		case strings.HasPrefix(k, fieldHeader):
			f.Headers[strings.TrimPrefix(k, fieldHeader)] = asString(v)
		}
	}

	msg, err := jms.DecodeFrame(p, f)
	if err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", x.ID, err)
	}
	msg.SetHeader(fieldStreamID, x.ID)

	return msg, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asBytes(v any) []byte {
	switch p := v.(type) {
	case []byte:
		return p
	case string:
		return []byte(p)
	default:
		return nil
	}
}

// nextID returns the smallest entry id greater than id.
func nextID(id string) (string, error) {
	ms, seq, ok := strings.Cut(id, "-")
	if !ok {
		return "", fmt.Errorf("malformed stream id %q", id)
	}

	n, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed stream id %q: %w", id, err)
	}

	return ms + "-" + strconv.FormatUint(n+1, 10), nil
}

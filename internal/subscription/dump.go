package subscription

import (
	"sort"

	"github.com/tidwall/sjson"
)

// Dump produces a JSON snapshot of the catalog for diagnostics: every topic
// key with its current subscribers, each described by sender identity,
// service name and the original subscription payload.
//
//	{
//	  "returnValue": true,
//	  "subscriptions": [
//	    {"key": "/clock/time", "subscribers": [
//	      {"unique_name": "...", "service_name": "...", "subscription_message": "..."}
//	    ]}
//	  ]
//	}
//
// Keys are sorted for deterministic output. The lock is held for the whole
// walk.
func (c *Catalog) Dump() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.topics))
	for key := range c.topics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out, err := sjson.Set("", "returnValue", true)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetRaw(out, "subscriptions", "[]")
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		entry, err := sjson.Set("", "key", key)
		if err != nil {
			return nil, err
		}
		entry, err = sjson.SetRaw(entry, "subscribers", "[]")
		if err != nil {
			return nil, err
		}

		for _, token := range c.topics[key].toks {
			rec := c.tokens[token]
			if rec == nil {
				continue
			}

			item, err := sjson.Set("", "unique_name", rec.msg.Sender())
			if err != nil {
				return nil, err
			}
			item, err = sjson.Set(item, "service_name", rec.msg.SenderServiceName())
			if err != nil {
				return nil, err
			}
			item, err = sjson.Set(item, "subscription_message", string(rec.msg.Payload()))
			if err != nil {
				return nil, err
			}

			entry, err = sjson.SetRaw(entry, "subscribers.-1", item)
			if err != nil {
				return nil, err
			}
		}

		out, err = sjson.SetRaw(out, "subscriptions.-1", entry)
		if err != nil {
			return nil, err
		}
	}

	return []byte(out), nil
}

package subscription

import (
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/buskit/buskit/internal/transport"
)

// Process inspects the message payload's "subscribe" field and, when it is
// true, adds the message under the default topic key derived from its
// category and method. It reports whether the sender is now subscribed.
//
// A payload without a "subscribe" field is a success with subscribed=false;
// a payload that is not valid JSON is an error.
func (c *Catalog) Process(msg *transport.Message) (bool, error) {
	payload := msg.Payload()
	if !gjson.ValidBytes(payload) {
		return false, xerrInvalid("not valid JSON")
	}

	sub := gjson.GetBytes(payload, "subscribe")
	if !sub.Exists() || !sub.Bool() {
		return false, nil
	}

	if err := c.Add(msg.Kind(), msg); err != nil {
		return false, err
	}
	return true, nil
}

// HandleCancel parses an explicit cancellation request. The payload carries
// the integer serial of the call being cancelled:
//
//	{"token": 7}
//
// Paired with the sender identity this names the unique token to remove.
// The cancellation hook is invoked if the subscription existed; cancelling
// an unknown token is not an error.
func (c *Catalog) HandleCancel(msg *transport.Message) error {
	payload := msg.Payload()
	if !gjson.ValidBytes(payload) {
		return xerrInvalid("not valid JSON")
	}

	serial := gjson.GetBytes(payload, "token")
	if serial.Type != gjson.Number {
		return xerrInvalid("missing integer token field")
	}

	token := msg.Sender() + "." + strconv.FormatInt(serial.Int(), 10)
	c.removeToken(token, true)
	return nil
}

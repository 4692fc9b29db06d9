package validations

import (
	"context"
	"testing"

	domainSend "github.com/eduzayn/educhat/domains/send"
	"github.com/stretchr/testify/assert"
)

func TestValidateSendMessage_FormattedPhone(t *testing.T) {
	ctx := context.Background()
	for _, phone := range []string{"55-11-99999-0000", "55 11 99999-0000", "+55 (11) 99999-0000"} {
		req := domainSend.MessageRequest{BaseRequest: domainSend.BaseRequest{Phone: phone}, Message: "oi"}
		assert.NoError(t, ValidateSendMessage(ctx, req), phone)
	}

	req := domainSend.MessageRequest{BaseRequest: domainSend.BaseRequest{Phone: "55-11"}, Message: "oi"}
	assert.Error(t, ValidateSendMessage(ctx, req))
}

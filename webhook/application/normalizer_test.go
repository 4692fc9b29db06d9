package application

import (
	"testing"

	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/webhook/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, body string) *domain.Envelope {
	t.Helper()
	env, err := domain.Parse([]byte(body))
	require.NoError(t, err)
	return env
}

func TestNormalize_Types(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		typ     inbox.MessageType
		content string
	}{
		{"text object", `{"type":"ReceivedCallback","phone":"1","text":{"message":"Oi"}}`, inbox.MessageText, "Oi"},
		{"text string", `{"type":"ReceivedCallback","phone":"1","text":"Olá"}`, inbox.MessageText, "Olá"},
		{"image", `{"type":"ReceivedCallback","phone":"1","image":{"imageUrl":"https://cdn/x.jpg","mimeType":"image/jpeg","caption":"foto"}}`, inbox.MessageImage, "https://cdn/x.jpg"},
		{"gif by mime", `{"type":"ReceivedCallback","phone":"1","image":{"imageUrl":"https://cdn/x.mp4","mimeType":"image/gif"}}`, inbox.MessageGIF, "https://cdn/x.mp4"},
		{"gif by extension", `{"type":"ReceivedCallback","phone":"1","image":{"imageUrl":"https://cdn/anim.GIF?x=1"}}`, inbox.MessageGIF, "https://cdn/anim.GIF?x=1"},
		{"image without url", `{"type":"ReceivedCallback","phone":"1","image":{}}`, inbox.MessageImage, "📷 Imagem"},
		{"audio", `{"type":"ReceivedCallback","phone":"1","audio":{"seconds":75}}`, inbox.MessageAudio, "🎵 Áudio (1:15)"},
		{"video", `{"type":"ReceivedCallback","phone":"1","video":{"videoUrl":"https://cdn/v.mp4"}}`, inbox.MessageVideo, "https://cdn/v.mp4"},
		{"document", `{"type":"ReceivedCallback","phone":"1","document":{"fileName":"rg.pdf","fileSize":1500000}}`, inbox.MessageDocument, "📄 Documento: rg.pdf (1.5 MB)"},
		{"sticker", `{"type":"ReceivedCallback","phone":"1","sticker":{"stickerUrl":"https://cdn/s.webp"}}`, inbox.MessageSticker, "https://cdn/s.webp"},
		{"location", `{"type":"ReceivedCallback","phone":"1","location":{"latitude":-23.5,"longitude":-46.6}}`, inbox.MessageLocation, "📍 -23.5, -46.6"},
		{"contact", `{"type":"ReceivedCallback","phone":"1","contact":{"displayName":"João"}}`, inbox.MessageContact, "👤 Contato: João"},
		{"reaction", `{"type":"ReceivedCallback","phone":"1","reaction":{"value":"👍"}}`, inbox.MessageReaction, "Reação: 👍"},
		{"poll", `{"type":"ReceivedCallback","phone":"1","poll":{"question":"Turno?","options":[{"name":"manhã"}]}}`, inbox.MessagePoll, "📊 Enquete: Turno?"},
		{"button", `{"type":"ReceivedCallback","phone":"1","buttonsResponseMessage":{"buttonId":"1","message":"Sim"}}`, inbox.MessageButton, "Sim"},
		{"list", `{"type":"ReceivedCallback","phone":"1","listResponseMessage":{"title":"Pedagogia","selectedRowId":"p"}}`, inbox.MessageList, "Pedagogia"},
		{"template", `{"type":"ReceivedCallback","phone":"1","hydratedTemplate":{"message":"Bem-vindo"}}`, inbox.MessageTemplate, "Bem-vindo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Normalize(envelope(t, tc.body))
			assert.Equal(t, tc.typ, d.Type)
			assert.Equal(t, tc.content, d.Content)
		})
	}
}

func TestNormalize_PriorityOrder(t *testing.T) {
	d := Normalize(envelope(t, `{"type":"ReceivedCallback","phone":"1","image":{"imageUrl":"https://cdn/i.png"},"text":{"message":"legenda"}}`))
	assert.Equal(t, inbox.MessageText, d.Type)
	assert.Equal(t, "legenda", d.Content)
}

func TestNormalize_MediaMetadata(t *testing.T) {
	d := Normalize(envelope(t, `{"type":"ReceivedCallback","phone":"1","senderName":"Ana","image":{"imageUrl":"https://cdn/x.jpg","caption":"meu RG"}}`))
	assert.Equal(t, "https://cdn/x.jpg", d.Metadata[inbox.MetaMediaURL])
	assert.Equal(t, "meu RG", d.Metadata[inbox.MetaCaption])
	assert.Equal(t, "Ana", d.Metadata[inbox.MetaSenderName])
	assert.Equal(t, "📷 Imagem", d.Metadata["placeholder"])

	msg := &inbox.Message{Type: d.Type, Content: d.Content, Metadata: d.Metadata}
	assert.Equal(t, "meu RG", msg.Text())
}

func TestNormalize_NeverFails(t *testing.T) {
	bodies := []string{
		`{"type":"ReceivedCallback","phone":"1"}`,
		`{"type":"ReceivedCallback","phone":"1","somethingNew":{"a":1}}`,
		`{"type":"ReceivedCallback","phone":"1","image":"not an object"}`,
		`{"type":"ReceivedCallback","phone":"1","text":{"message":""}}`,
		`{"type":"ReceivedCallback","phone":"1","poll":{"options":"broken"}}`,
		`{"type":"ReceivedCallback","phone":"1","text":null,"image":[1,2]}`,
	}
	for _, body := range bodies {
		d := Normalize(envelope(t, body))
		assert.NotEmpty(t, d.Content, body)
		assert.NotEmpty(t, d.Type, body)
	}

	d := Normalize(envelope(t, bodies[1]))
	assert.Equal(t, inbox.MessageUnsupported, d.Type)
	assert.Equal(t, "⚠️ Mensagem não suportada", d.Content)
}

package application

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	inbox "github.com/eduzayn/educhat/inbox/domain"
	"github.com/eduzayn/educhat/webhook/domain"
	"github.com/sirupsen/logrus"
)

// Draft is the canonical form of an inbound gateway message.
type Draft struct {
	Type     inbox.MessageType
	Content  string
	Metadata map[string]any
}

const (
	metaPlaceholder = "placeholder"
	metaDuration    = "duration_seconds"
)

const placeholderUnsupported = "⚠️ Mensagem não suportada"

type object = map[string]json.RawMessage

type extractor struct {
	keys []string
	fn   func(obj object, d *Draft) bool
}

// Fields are probed in this order; the first present one decides the type.
var extractors = []extractor{
	{keys: []string{"text"}, fn: extractText},
	{keys: []string{"image"}, fn: extractImage},
	{keys: []string{"audio"}, fn: extractAudio},
	{keys: []string{"video"}, fn: extractVideo},
	{keys: []string{"document"}, fn: extractDocument},
	{keys: []string{"sticker"}, fn: extractSticker},
	{keys: []string{"location"}, fn: extractLocation},
	{keys: []string{"contact"}, fn: extractContact},
	{keys: []string{"reaction"}, fn: extractReaction},
	{keys: []string{"poll"}, fn: extractPoll},
	{keys: []string{"buttonsResponseMessage", "button"}, fn: extractButton},
	{keys: []string{"listResponseMessage", "list"}, fn: extractList},
	{keys: []string{"hydratedTemplate", "template"}, fn: extractTemplate},
}

// Normalize maps a ReceivedCallback to a Draft. It never fails: shapes it
// does not understand become an unsupported message with a placeholder.
func Normalize(env *domain.Envelope) (d Draft) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[WEBHOOK] Normalizer panic on message %s: %v", env.MessageID, r)
			d = unsupported(env)
		}
	}()

	base := map[string]any{}
	if env.SenderName != "" {
		base[inbox.MetaSenderName] = env.SenderName
	}

	if s := domain.String(env.Raw, "text"); s != "" {
		return Draft{Type: inbox.MessageText, Content: s, Metadata: base}
	}

	for _, ex := range extractors {
		for _, key := range ex.keys {
			var obj object
			if !domain.Object(env.Raw, key, &obj) {
				continue
			}
			d := Draft{Metadata: copyMeta(base)}
			if ex.fn(obj, &d) {
				return d
			}
		}
	}
	return unsupported(env)
}

func unsupported(env *domain.Envelope) Draft {
	keys := make([]string, 0, len(env.Raw))
	for k := range env.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	logrus.WithFields(logrus.Fields{
		"message_id": env.MessageID,
		"keys":       strings.Join(keys, ","),
	}).Warn("[WEBHOOK] Unsupported message shape, storing placeholder")

	meta := map[string]any{metaPlaceholder: placeholderUnsupported}
	if env.SenderName != "" {
		meta[inbox.MetaSenderName] = env.SenderName
	}
	return Draft{Type: inbox.MessageUnsupported, Content: placeholderUnsupported, Metadata: meta}
}

func extractText(obj object, d *Draft) bool {
	msg := domain.String(obj, "message")
	if msg == "" {
		return false
	}
	d.Type = inbox.MessageText
	d.Content = msg
	return true
}

func extractImage(obj object, d *Draft) bool {
	url := domain.String(obj, "imageUrl")
	mime := domain.String(obj, "mimeType")
	d.Type = inbox.MessageImage
	placeholder := "📷 Imagem"
	if isGIF(mime, url) {
		d.Type = inbox.MessageGIF
		placeholder = "🎞️ GIF"
	}
	media(d, url, placeholder)
	setIf(d.Metadata, inbox.MetaMimeType, mime)
	setIf(d.Metadata, inbox.MetaCaption, domain.String(obj, "caption"))
	setIf(d.Metadata, "thumbnail_url", domain.String(obj, "thumbnailUrl"))
	return true
}

func extractAudio(obj object, d *Draft) bool {
	seconds := domain.Int(obj, "seconds")
	placeholder := "🎵 Áudio"
	if seconds > 0 {
		placeholder += " (" + clock(seconds) + ")"
		d.Metadata[metaDuration] = seconds
	}
	d.Type = inbox.MessageAudio
	media(d, domain.String(obj, "audioUrl"), placeholder)
	setIf(d.Metadata, inbox.MetaMimeType, domain.String(obj, "mimeType"))
	if domain.Bool(obj, "ptt") {
		d.Metadata["voice_note"] = true
	}
	return true
}

func extractVideo(obj object, d *Draft) bool {
	seconds := domain.Int(obj, "seconds")
	placeholder := "🎥 Vídeo"
	if seconds > 0 {
		placeholder += " (" + clock(seconds) + ")"
		d.Metadata[metaDuration] = seconds
	}
	d.Type = inbox.MessageVideo
	media(d, domain.String(obj, "videoUrl"), placeholder)
	setIf(d.Metadata, inbox.MetaMimeType, domain.String(obj, "mimeType"))
	setIf(d.Metadata, inbox.MetaCaption, domain.String(obj, "caption"))
	return true
}

func extractDocument(obj object, d *Draft) bool {
	url := domain.String(obj, "documentUrl")
	name := domain.String(obj, "fileName")
	if name == "" {
		name = domain.String(obj, "title")
	}
	if name == "" && url != "" {
		name = path.Base(url)
	}

	placeholder := "📄 Documento"
	if name != "" {
		placeholder += ": " + name
	}
	if size := domain.Int(obj, "fileSize"); size > 0 {
		human := humanize.Bytes(uint64(size))
		placeholder += " (" + human + ")"
		d.Metadata["file_size"] = size
		d.Metadata["file_size_human"] = human
	}
	if pages := domain.Int(obj, "pageCount"); pages > 0 {
		d.Metadata["page_count"] = pages
	}

	d.Type = inbox.MessageDocument
	media(d, url, placeholder)
	setIf(d.Metadata, inbox.MetaFileName, name)
	setIf(d.Metadata, inbox.MetaMimeType, domain.String(obj, "mimeType"))
	setIf(d.Metadata, inbox.MetaCaption, domain.String(obj, "caption"))
	return true
}

func extractSticker(obj object, d *Draft) bool {
	d.Type = inbox.MessageSticker
	media(d, domain.String(obj, "stickerUrl"), "🏷️ Figurinha")
	setIf(d.Metadata, inbox.MetaMimeType, domain.String(obj, "mimeType"))
	return true
}

func extractLocation(obj object, d *Draft) bool {
	lat, lng := domain.String(obj, "latitude"), domain.String(obj, "longitude")
	name, address := domain.String(obj, "name"), domain.String(obj, "address")

	d.Type = inbox.MessageLocation
	switch {
	case name != "" && address != "":
		d.Content = "📍 Localização: " + name + " - " + address
	case name != "" || address != "":
		d.Content = "📍 Localização: " + name + address
	case lat != "" && lng != "":
		d.Content = "📍 " + lat + ", " + lng
	default:
		d.Content = "📍 Localização"
	}
	setIf(d.Metadata, "latitude", lat)
	setIf(d.Metadata, "longitude", lng)
	setIf(d.Metadata, "name", name)
	setIf(d.Metadata, "address", address)
	setIf(d.Metadata, "url", domain.String(obj, "url"))
	return true
}

func extractContact(obj object, d *Draft) bool {
	name := domain.String(obj, "displayName")
	d.Type = inbox.MessageContact
	d.Content = "👤 Contato"
	if name != "" {
		d.Content += ": " + name
	}
	setIf(d.Metadata, "display_name", name)
	setIf(d.Metadata, "vcard", domain.String(obj, "vCard"))
	if phones := domain.Strings(obj, "phones"); len(phones) > 0 {
		d.Metadata["phones"] = phones
	}
	return true
}

func extractReaction(obj object, d *Draft) bool {
	value := domain.String(obj, "value")
	d.Type = inbox.MessageReaction
	d.Content = "Reação: " + value
	if value == "" {
		d.Content = "Reação removida"
	}
	var ref object
	if domain.Object(obj, "referencedMessage", &ref) {
		setIf(d.Metadata, "referenced_message_id", domain.String(ref, "messageId"))
	}
	setIf(d.Metadata, "reaction", value)
	return true
}

func extractPoll(obj object, d *Draft) bool {
	question := domain.String(obj, "question")
	d.Type = inbox.MessagePoll
	d.Content = "📊 Enquete"
	if question != "" {
		d.Content += ": " + question
	}

	var options []object
	if raw, ok := obj["options"]; ok && json.Unmarshal(raw, &options) == nil {
		names := make([]string, 0, len(options))
		for _, o := range options {
			if n := domain.String(o, "name"); n != "" {
				names = append(names, n)
			}
		}
		if len(names) > 0 {
			d.Metadata["options"] = names
		}
	}
	setIf(d.Metadata, "question", question)
	return true
}

func extractButton(obj object, d *Draft) bool {
	msg := domain.String(obj, "message")
	if msg == "" {
		msg = domain.String(obj, "buttonText")
	}
	d.Type = inbox.MessageButton
	d.Content = fallback(msg, "🔘 Resposta de botão")
	setIf(d.Metadata, "button_id", domain.String(obj, "buttonId"))
	return true
}

func extractList(obj object, d *Draft) bool {
	msg := domain.String(obj, "message")
	if msg == "" {
		msg = domain.String(obj, "title")
	}
	d.Type = inbox.MessageList
	d.Content = fallback(msg, "📋 Resposta de lista")
	setIf(d.Metadata, "selected_row_id", domain.String(obj, "selectedRowId"))
	setIf(d.Metadata, "title", domain.String(obj, "title"))
	return true
}

func extractTemplate(obj object, d *Draft) bool {
	msg := domain.String(obj, "message")
	d.Type = inbox.MessageTemplate
	d.Content = fallback(msg, "🧾 Modelo")
	setIf(d.Metadata, "title", domain.String(obj, "title"))
	setIf(d.Metadata, "footer", domain.String(obj, "footer"))
	return true
}

func media(d *Draft, url, placeholder string) {
	d.Metadata[metaPlaceholder] = placeholder
	if url == "" {
		d.Content = placeholder
		return
	}
	d.Content = url
	d.Metadata[inbox.MetaMediaURL] = url
}

func isGIF(mime, url string) bool {
	if strings.EqualFold(mime, "image/gif") {
		return true
	}
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(u, ".gif")
}

func clock(seconds int64) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func setIf(meta map[string]any, key, value string) {
	if value != "" {
		meta[key] = value
	}
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}

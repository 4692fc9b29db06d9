package linkpreview

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OpenGraph(t *testing.T) {
	html := `<html><head>
		<title>Fallback</title>
		<meta property="og:title" content="Pós-graduação EAD">
		<meta property="og:description" content="Inscrições abertas">
		<meta property="og:image" content="/img/capa.png">
	</head></html>`
	base, _ := url.Parse("https://cursos.example.com/pos/")

	p, err := Parse(strings.NewReader(html), base)
	require.NoError(t, err)
	assert.Equal(t, "Pós-graduação EAD", p.Title)
	assert.Equal(t, "Inscrições abertas", p.Description)
	assert.Equal(t, "https://cursos.example.com/img/capa.png", p.ImageURL)
}

func TestParse_Fallbacks(t *testing.T) {
	html := `<html><head>
		<title> Página inicial </title>
		<meta name="description" content="Descrição simples">
	</head></html>`

	p, err := Parse(strings.NewReader(html), nil)
	require.NoError(t, err)
	assert.Equal(t, "Página inicial", p.Title)
	assert.Equal(t, "Descrição simples", p.Description)
	assert.Empty(t, p.ImageURL)
}

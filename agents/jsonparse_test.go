package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnfence_StripsMarkdownFence(t *testing.T) {
	assert.Equal(t, `["a","b"]`, unfence("```json\n[\"a\",\"b\"]\n```"))
	assert.Equal(t, `["a"]`, unfence("```\n[\"a\"]\n```"))
	assert.Equal(t, `["a"]`, unfence(`["a"]`))
}

func TestParseJSONStringArray(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseJSONStringArray(`["a","b"]`))
	assert.Nil(t, parseJSONStringArray("not json"))
}

func TestParseJSONStringMap(t *testing.T) {
	result := parseJSONStringMap(`{"a":"1","b":"2"}`)
	assert.Equal(t, "1", result["a"])
	assert.Equal(t, "2", result["b"])

	assert.Empty(t, parseJSONStringMap("garbage"))
}

func TestParseJSONObject(t *testing.T) {
	result := parseJSONObject(`{"nodes": ["x"], "count": 3}`)
	assert.Equal(t, float64(3), result["count"])

	assert.Empty(t, parseJSONObject("garbage"))
}

func TestParseJSONIntArray(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1}, parseJSONIntArray("```json\n[2, 0, 1]\n```"))
	assert.Nil(t, parseJSONIntArray("not json"))
}

package collector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectorNeedsHeadless(t *testing.T) {
	t.Parallel()

	d := NewDetector(0)

	cases := []struct {
		name string
		resp FetchResponse
		want bool
	}{
		{
			name: "empty body",
			resp: FetchResponse{StatusCode: 200},
			want: true,
		},
		{
			name: "spa root marker",
			resp: FetchResponse{StatusCode: 200, Body: []byte(`<html><body><div id="root"></div></body></html>`)},
			want: true,
		},
		{
			name: "next marker",
			resp: FetchResponse{StatusCode: 200, Body: []byte(`<div id="__next"></div>` + strings.Repeat("<p>x</p>", 500))},
			want: true,
		},
		{
			name: "small script-heavy shell",
			resp: FetchResponse{StatusCode: 200, Body: []byte(`<html><script>window.bootstrap={data:1234567890}</script><div></div></html>`)},
			want: true,
		},
		{
			name: "regular content page",
			resp: FetchResponse{StatusCode: 200, Body: []byte("<html><body>" + strings.Repeat("<td>132.4</td>", 300) + "</body></html>")},
			want: false,
		},
		{
			name: "non-200 is never promoted",
			resp: FetchResponse{StatusCode: 404},
			want: false,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, d.NeedsHeadless(tc.resp))
		})
	}
}

func TestScriptDensityHigh(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh([]byte(`<script>var a=1;var b=2;var c=3;</script><p>x</p>`)))
	require.False(t, scriptDensityHigh([]byte(strings.Repeat("<p>content</p>", 100))))
	// Malformed script that never closes counts to the end of the document.
	require.True(t, scriptDensityHigh([]byte(`<p>x</p><script>var a=1;var b=2;var c=3;var d=4;`)))
}

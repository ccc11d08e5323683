package resolve

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostnameFromPTR(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "lan suffix stripped", target: "laptop.lan.", want: "laptop"},
		{name: "local suffix stripped", target: "printer.local.", want: "printer"},
		{name: "home suffix stripped", target: "nas.home.", want: "nas"},
		{name: "public name kept", target: "dns.google.", want: "dns.google"},
		{name: "bare name", target: "router.", want: "router"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hostnameFromPTR(tt.target))
		})
	}
}

func TestNopResolver(t *testing.T) {
	r := Nop()
	assert.Empty(t, r.Reverse(context.Background(), net.ParseIP("192.168.1.1")))
	assert.Empty(t, r.Reverse(context.Background(), nil))
}

func TestReverseNilIP(t *testing.T) {
	r := &ptrResolver{}
	assert.Empty(t, r.Reverse(context.Background(), nil))
}

package domain

import (
	"testing"

	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want boletodomain.Status
		ok   bool
	}{
		{"REGISTRADO", boletodomain.StatusRegistrado, true},
		{"Em Aberto", boletodomain.StatusRegistrado, true},
		{"LIQUIDADO", boletodomain.StatusPago, true},
		{"pago", boletodomain.StatusPago, true},
		{"BAIXADO", boletodomain.StatusCancelado, true},
		{"  cancelado ", boletodomain.StatusCancelado, true},
		{"PENDENTE", boletodomain.StatusPendente, true},
		{"PROTESTADO", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := MapStatus(tc.raw)
		assert.Equal(t, tc.want, got, "MapStatus(%q)", tc.raw)
		assert.Equal(t, tc.ok, ok, "MapStatus(%q) recognized", tc.raw)
	}
}

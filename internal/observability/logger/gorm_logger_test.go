package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM settlements":                                      "SELECT",
		"  insert into invoices (id) values (?) ON CONFLICT DO NOTHING": "INSERT",
		"WITH recent AS (SELECT 1) UPDATE seller_tier_states SET x = 1": "SELECT",
		"":       "UNKNOWN",
		"VACUUM": "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig(false))
	sql, params := l.ParamsFilter(context.Background(), "SELECT ?", "GB123456789")
	assert.Equal(t, "SELECT ?", sql)
	assert.Nil(t, params)
}

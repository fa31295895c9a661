package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		name      string
		text      string
		cmd       string
		args      []string
		isCommand bool
	}{
		{"восклицательный знак", "!топ неделя", "топ", []string{"неделя"}, true},
		{"точка", ".очки", "очки", nil, true},
		{"слэш", "/start", "start", nil, true},
		{"регистр команды", "!ТОП", "топ", nil, true},
		{"упоминание бота отрезается", "/топ@scorebot месяц", "топ", []string{"месяц"}, true},
		{"пробелы вокруг", "  !история  ", "история", nil, true},
		{"много аргументов", "!начислить @vasya забег 85/100", "начислить", []string{"@vasya", "забег", "85/100"}, true},
		{"обычный текст", "привет всем", "", nil, false},
		{"голый префикс", "!", "", nil, false},
		{"пустая строка", "", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, isCommand := parser.ParseCommand(tt.text)
			assert.Equal(t, tt.isCommand, isCommand)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

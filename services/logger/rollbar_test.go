package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/autograder/core"
)

func TestSplitPerson(t *testing.T) {
	err := errors.New("boom")
	extras := map[string]interface{}{"quiz": "q1"}

	tests := []struct {
		name       string
		args       []interface{}
		wantPerson *core.Person
		wantArgs   []interface{}
	}{
		{name: "no args", wantArgs: []interface{}{"msg"}},
		{name: "no person", args: []interface{}{err, extras}, wantArgs: []interface{}{"msg", err, extras}},
		{
			name:       "person is removed",
			args:       []interface{}{err, core.Person{ID: "u1", Email: "u1@test.test"}, extras},
			wantPerson: &core.Person{ID: "u1", Email: "u1@test.test"},
			wantArgs:   []interface{}{"msg", err, extras},
		},
		{
			name:       "first person wins",
			args:       []interface{}{core.Person{ID: "u1"}, core.Person{ID: "u2"}},
			wantPerson: &core.Person{ID: "u1"},
			wantArgs:   []interface{}{"msg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			person, args := splitPerson("msg", tt.args)
			assert.Equal(t, tt.wantPerson, person)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

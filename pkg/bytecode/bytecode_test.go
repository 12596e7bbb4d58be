package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpString(t *testing.T) {
	cases := []struct {
		op   Op
		want string
	}{
		{OpConstant, "OP_CONSTANT"},
		{OpNil, "OP_NIL"},
		{OpPop, "OP_POP"},
		{OpGetLocal, "OP_GET_LOCAL"},
		{OpDefineGlobal, "OP_DEFINE_GLOBAL"},
		{OpAdd, "OP_ADD"},
		{OpJumpIfFalse, "OP_JUMP_IF_FALSE"},
		{OpLoop, "OP_LOOP"},
		{OpCall, "OP_CALL"},
		{OpReturn, "OP_RETURN"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.op.String())
	}
}

func TestOpStringUnknown(t *testing.T) {
	assert.Equal(t, "OP_UNKNOWN", Op(255).String())
}

func TestLimits(t *testing.T) {
	assert.Equal(t, 256, MaxConstants)
	assert.Equal(t, 65535, MaxJump)
}

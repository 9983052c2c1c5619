package interp_test

import (
	"testing"

	"github.com/soilvm/soil/interp"
)

func TestDecodeNop(t *testing.T) {
	inst, next, err := interp.Decode([]byte{0x00}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.Op != interp.OpNop || next != 1 {
		t.Fatalf("unexpected decode result: %+v next=%d", inst, next)
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, _, err := interp.Decode([]byte{0xFF}, 0)
	if err == nil {
		t.Fatal("expected an error for an unknown opcode")
	}
}

func TestDecodeTruncatedWordOperand(t *testing.T) {
	// movei needs a register byte and an 8-byte word; give it only 2 bytes.
	_, _, err := interp.Decode([]byte{byte(interp.OpMoveI), 0x02, 0x00, 0x00}, 0)
	if err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestDecodePastEndOfByteCode(t *testing.T) {
	_, _, err := interp.Decode([]byte{0x00}, 5)
	if err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestDecodeRejectsOutOfRangeRegister(t *testing.T) {
	// register nibble 0x09 is out of the 0..7 range.
	_, _, err := interp.Decode([]byte{byte(interp.OpPush), 0x09}, 0)
	if err == nil {
		t.Fatal("expected a bad-register error")
	}
}

func TestDecodeRejectsSingleRegisterOperandWithNonzeroHighNibble(t *testing.T) {
	// push takes a single-register operand: the whole byte is the index, so
	// 0x80 must be rejected rather than masked down to register 0.
	_, _, err := interp.Decode([]byte{byte(interp.OpPush), 0x80}, 0)
	if err == nil {
		t.Fatal("expected a bad-register error for a single-register operand with a nonzero high nibble")
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	code := []byte{byte(interp.OpMoveI), 0x02, 1, 2, 3, 4, 5, 6, 7, 8}
	cp := append([]byte(nil), code...)
	if _, _, err := interp.Decode(code, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range code {
		if code[i] != cp[i] {
			t.Fatalf("Decode mutated its input at index %d", i)
		}
	}
}

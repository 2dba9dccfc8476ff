// Package syscall implements the dispatcher of spec.md §4.8: decoding
// a trapframe's syscall number and up to four 32-bit arguments,
// fanning out to the handlers for open/read/write/close/lseek/dup2/
// chdir/getcwd/fork/exec/wait/exit/getpid/sbrk, and writing back the
// MIPS return convention (v0/v1 + a3, saved PC advanced by one
// instruction). Modeled on the teacher's interrupt.go
// InterruptContext/SystemCallHandler shape, adapted to the register
// set and return convention spec.md specifies instead of the x86-64
// ABI the teacher uses.
package syscall

// Trapframe is the saved register state spec.md treats as an external
// collaborator ("the MIPS trap entry path and its register-save
// trapframe"); this is the minimal slice of it the dispatcher touches.
type Trapframe struct {
	V0, V1         uint32 // syscall number in, return value(s) out
	A0, A1, A2, A3 uint32 // first four args in; A3 doubles as the error flag out
	SP             uint32
	EPC            uint32 // saved PC; advanced by one instruction after every syscall except _exit and a successful execv
}

const instructionSize = 4

// Number is the syscall number decoded from V0.
func (tf *Trapframe) Number() int { return int(tf.V0) }

// Succeed sets the success return convention: v0 (and optionally v1
// for a 64-bit return like lseek) carries the result, a3=0.
func (tf *Trapframe) Succeed(v0, v1 uint32) {
	tf.V0, tf.V1, tf.A3 = v0, v1, 0
	tf.EPC += instructionSize
}

// Fail sets the failure return convention: v0 carries the errno, a3=1.
func (tf *Trapframe) Fail(code int) {
	tf.V0, tf.A3 = uint32(code), 1
	tf.EPC += instructionSize
}

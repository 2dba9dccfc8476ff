// Package errno defines the kernel's error-code taxonomy and the
// convention used to carry it across the syscall boundary.
package errno

import (
	"errors"
	"fmt"
)

// Errno is a kernel error code. It satisfies the error interface so it
// can be returned and wrapped like any other Go error, but callers that
// need the raw code for the syscall return convention can type-assert
// or call Code.
type Errno int

const (
	// Success is never returned as an error; it exists so a zero Errno
	// reads as "no error" rather than an unnamed code.
	Success Errno = 0

	EFAULT Errno = iota + 13 // bad address
	EINVAL                   // invalid argument
	EBADF                    // bad file descriptor
	EMFILE                   // too many open files
	ENOMEM                   // out of memory
	ENPROC                   // too many processes
	ESRCH                    // no such process
	ECHILD                   // no child processes
	E2BIG                    // argument list too long
	ESPIPE                   // illegal seek
	ENOSYS                   // function not implemented
)

var names = map[Errno]string{
	EFAULT: "EFAULT",
	EINVAL: "EINVAL",
	EBADF:  "EBADF",
	EMFILE: "EMFILE",
	ENOMEM: "ENOMEM",
	ENPROC: "ENPROC",
	ESRCH:  "ESRCH",
	ECHILD: "ECHILD",
	E2BIG:  "E2BIG",
	ESPIPE: "ESPIPE",
	ENOSYS: "ENOSYS",
}

func (e Errno) Error() string {
	if name, ok := names[e]; ok {
		return name
	}
	return fmt.Sprintf("errno(%d)", int(e))
}

// Code returns the raw numeric code, as placed into v0 on syscall failure.
func (e Errno) Code() int { return int(e) }

// FromError unwraps err looking for an Errno, defaulting to ENOSYS when
// the error carries no kernel error code. Internal callers use this at
// the dispatcher boundary so every failure path, however it originated,
// resolves to a concrete errno before it is written into a trapframe.
func FromError(err error) Errno {
	if err == nil {
		return Success
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return ENOSYS
}

// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/ledgermesh/swarmd/fault"
)

var (
	ErrInvalidOne   = fault.InvalidError("invalid one")
	ErrInvalidTwo   = fault.InvalidError("invalid two")
	ErrNotFoundOne  = fault.NotFoundError("not found one")
	ErrNotFoundTwo  = fault.NotFoundError("not found two")
	ErrTransientOne = fault.TransientError("transient one")
	ErrTransientTwo = fault.TransientError("transient two")
	ErrProcessOne   = fault.ProcessError("process one")
	ErrProcessTwo   = fault.ProcessError("process two")
)

// test that the error classes can be told apart
func TestClassification(t *testing.T) {
	errorList := []struct {
		err       error
		invalid   bool
		notFound  bool
		transient bool
		process   bool
	}{
		{ErrInvalidOne, true, false, false, false},
		{ErrInvalidTwo, true, false, false, false},
		{ErrNotFoundOne, false, true, false, false},
		{ErrNotFoundTwo, false, true, false, false},
		{ErrTransientOne, false, false, true, false},
		{ErrTransientTwo, false, false, true, false},
		{ErrProcessOne, false, false, false, true},
		{ErrProcessTwo, false, false, false, true},
	}

	for i, e := range errorList {
		err := e.err
		if fault.IsErrInvalid(err) != e.invalid {
			t.Errorf("%d: expected 'invalid' == %v for err = %v", i, e.invalid, err)
		}
		if fault.IsErrNotFound(err) != e.notFound {
			t.Errorf("%d: expected 'not found' == %v for err = %v", i, e.notFound, err)
		}
		if fault.IsErrTransient(err) != e.transient {
			t.Errorf("%d: expected 'transient' == %v for err = %v", i, e.transient, err)
		}
		if fault.IsErrProcess(err) != e.process {
			t.Errorf("%d: expected 'process' == %v for err = %v", i, e.process, err)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	if "invalid one" != ErrInvalidOne.Error() {
		t.Errorf("unexpected message: %q", ErrInvalidOne.Error())
	}
}

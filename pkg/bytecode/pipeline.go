package bytecode

import "github.com/sylt-lang/sylt/compiler"

// ---------------------------------------------------------------------------
// Pipeline: compile, typecheck, run
// ---------------------------------------------------------------------------

// TypeCheck executes the program's bytecode in check mode: extern
// calls are intercepted into placeholder results, Unknown propagates
// through operators, prints are suppressed and every block runs at
// most once. A shape mismatch aborts the check before any real run.
func TypeCheck(prog *Program, externs *Registry) error {
	return NewVM(prog, externs).Check()
}

// Run executes the program for real.
func Run(prog *Program, externs *Registry) error {
	return NewVM(prog, externs).Run()
}

// CompileAndRun is the whole pipeline over already-parsed modules:
// compile, typecheck, then run. The typecheck pass is skipped when
// skipCheck is set.
func CompileAndRun(tree *compiler.Prog, externs *Registry, skipCheck bool) error {
	prog, errs := Compile(tree, externs)
	if len(errs) > 0 {
		return errs[0]
	}
	if !skipCheck {
		if err := TypeCheck(prog, externs); err != nil {
			return err
		}
	}
	return Run(prog, externs)
}

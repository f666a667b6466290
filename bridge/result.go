package bridge

import (
	"errors"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/zerocopy"
)

// zcResultToErr translates a zerocopy.Result into the conn error it
// stands for on the wrapper's hot path, §4.6's translation table.
func zcResultToErr(res zerocopy.Result) error {
	switch res {
	case zerocopy.ResultSuccess:
		return nil
	case zerocopy.ResultWrongState:
		return conn.ErrWrongState
	case zerocopy.ResultContextCancelled:
		return conn.ErrContextCancelled
	default:
		return conn.ErrGeneralFailure
	}
}

// errToZCResult is the inverse translation, used by WrapperTx's tx
// callback to report the inner bridge's do_receive outcome back to the
// gateway in its own vocabulary.
func errToZCResult(err error) zerocopy.Result {
	switch {
	case err == nil:
		return zerocopy.ResultSuccess
	case errors.Is(err, conn.ErrWrongState):
		return zerocopy.ResultWrongState
	case errors.Is(err, conn.ErrContextCancelled):
		return zerocopy.ResultContextCancelled
	default:
		return zerocopy.ResultGeneralFailure
	}
}

package profile

import (
	"fmt"
	"net/http"

	"github.com/helixir/profile-service/internal/backend"
	"github.com/helixir/profile-service/internal/domain"
)

// Interpret maps the raw outcome of one get-profile call to a Result.
//
//   - 200 with a valid profile is a success.
//   - 401 means the session expired; it is not an error.
//   - any other status, 429 included, is a failure whose message embeds the code.
//   - decode, validation and transport errors are failures, including
//     ones that wrap context.Canceled. Callers decide supersession from
//     their own context.
func Interpret(resp *backend.ProfileResponse, err error) Result {
	if err != nil {
		return Failure(err)
	}
	if resp == nil {
		return Failure(fmt.Errorf("%w: no response", domain.ErrTransport))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if resp.Profile == nil {
			return Failure(domain.NewDecodeError(backend.SourceName, []string{"empty profile"}, nil))
		}
		return Success(resp.Profile)
	case http.StatusUnauthorized:
		return NotAuthenticated()
	default:
		return Failure(domain.NewUnexpectedStatusError(backend.SourceName, resp.StatusCode))
	}
}

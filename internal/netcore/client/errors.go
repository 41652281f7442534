package client

import "github.com/CitroenGames/garden-framework-sub000/errors"

var (
	errConnectTimeout    = errors.New("client: connect timed out waiting for CONNECT_ACCEPT")
	errUnexpectedResponse = errors.New("client: expected CONNECT_ACCEPT or CONNECT_REJECT")
)

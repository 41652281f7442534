package server

import "github.com/CitroenGames/garden-framework-sub000/errors"

var errUnexpectedHandshakeMessage = errors.New("server: expected CONNECT_REQUEST as first message")

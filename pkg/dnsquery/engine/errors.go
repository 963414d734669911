package engine

import "errors"

// ErrInvalidResolver is returned when [Engine.SetResolver] is given a
// string that does not parse as a dotted-quad IPv4 address literal. This
// module targets IPv4 exclusively, matching the raw-socket transports it
// is built on.
var ErrInvalidResolver = errors.New("dnsquery/engine: resolver is not a valid IPv4 address literal")

// ErrUnknownQueryKind names the unrecognized-descriptor case. The string
// form, [Engine.SetQueryKindDescriptor], reports that case by returning
// false; nothing in this package returns this error.
var ErrUnknownQueryKind = errors.New("dnsquery/engine: unknown query kind descriptor")

// ErrInvalidReverseAddr is returned by [ReverseQuery] when its
// argument is not a well-formed dotted-quad IPv4 address.
var ErrInvalidReverseAddr = errors.New("dnsquery/engine: not a valid dotted-quad address")

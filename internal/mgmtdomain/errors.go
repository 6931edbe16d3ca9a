package mgmtdomain

import "errors"

var (
	ErrHostnameCount          = errors.New("one or two uplink devices are required to find a compatible mgmtdomain")
	ErrInvalidHostname        = errors.New("invalid hostname")
	ErrDeviceNotFound         = errors.New("hostname not found in device database")
	ErrNoMgmtdomain           = errors.New("no mgmtdomain found for uplink device")
	ErrAmbiguousMgmtdomain    = errors.New("found multiple possible mgmtdomains, please remove any redundant mgmtdomains")
	ErrTierMismatch           = errors.New("both uplink devices must be of same device type")
	ErrUnexpectedTier         = errors.New("unexpected uplink device type")
	ErrMissingMgmtdomain      = errors.New("uplink access devices are missing mgmtdomains")
	ErrInconsistentMgmtdomain = errors.New("uplink access devices have different mgmtdomains")
)

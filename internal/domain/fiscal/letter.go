package fiscal

import (
	"errors"
	"fmt"
)

// ErrUnsupportedIssuer is returned for issuers that cannot emit vouchers
var ErrUnsupportedIssuer = errors.New("issuer IVA condition cannot emit vouchers")

// DetermineLetter picks the voucher letter from the issuer and receiver IVA conditions.
//
//	issuer RI:    receiver RI, MT -> A; EX, CF, NR -> B; EXT -> E
//	issuer MT/EX: receiver EXT -> E; anyone else -> C
func DetermineLetter(issuer, receiver IVACondition) (Letter, error) {
	if !receiver.IsValid() {
		return "", fmt.Errorf("receiver %q: %w", receiver, ErrUnknownIVACondition)
	}

	switch issuer {
	case ConditionRI:
		switch receiver {
		case ConditionRI, ConditionMT:
			return LetterA, nil
		case ConditionEXT:
			return LetterE, nil
		default:
			return LetterB, nil
		}
	case ConditionMT, ConditionEX:
		if receiver == ConditionEXT {
			return LetterE, nil
		}
		return LetterC, nil
	default:
		return "", fmt.Errorf("issuer %q: %w", issuer, ErrUnsupportedIssuer)
	}
}

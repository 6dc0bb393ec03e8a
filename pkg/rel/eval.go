package rel

import (
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/stratum/pkg/errdef"
)

// evalRel reports whether every non-record-only condition of a relation holds
// for the presented attribute values and environment. Each attribute
// condition reads the side its IsFrom flag names. Conditions combine with
// AND; a relation with no evaluable conditions always holds.
func evalRel(rel *Rel, fromAttrs, toAttrs map[string]string, env EnvContext) (bool, error) {
	for _, cond := range rel.Attrs {
		if cond.RecordOnly {
			continue
		}
		attrs := toAttrs
		if cond.IsFrom {
			attrs = fromAttrs
		}
		ok, err := evalAttr(cond, attrs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	for _, cond := range rel.Envs {
		ok, err := evalEnv(cond, env)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalAttr(cond *AttrCond, attrs map[string]string) (bool, error) {
	presented, ok := attrs[cond.Name]
	if !ok {
		return false, nil
	}
	switch cond.Operator {
	case AttrEq:
		return presented == cond.Value, nil
	case AttrNe:
		return presented != cond.Value, nil
	case AttrInclude:
		if err := requireSysCodes(cond, presented); err != nil {
			return false, err
		}
		return presented == cond.Value || strings.HasPrefix(presented, cond.Value), nil
	case AttrLike:
		if err := requireSysCodes(cond, presented); err != nil {
			return false, err
		}
		return presented != cond.Value && strings.HasPrefix(presented, cond.Value), nil
	default:
		return false, errdef.InvalidArgumentf("unknown attribute operator %d", cond.Operator)
	}
}

// requireSysCodes guards the tree operators: both sides must look like sys
// codes or the prefix test is meaningless.
func requireSysCodes(cond *AttrCond, presented string) error {
	if !looksLikeSysCode(cond.Value) || !looksLikeSysCode(presented) {
		return errdef.InvalidArgumentf("operator %s on attribute %q requires sys code values",
			cond.Operator, cond.Name)
	}
	return nil
}

func looksLikeSysCode(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

func evalEnv(cond *EnvCond, env EnvContext) (bool, error) {
	now := env.Now
	if now.IsZero() {
		now = time.Now()
	}
	switch cond.Kind {
	case EnvDatetimeRange:
		from, err := time.Parse(time.RFC3339, cond.Value1)
		if err != nil {
			return false, errdef.InvalidArgumentf("datetime range start %q is malformed", cond.Value1)
		}
		to, err := time.Parse(time.RFC3339, cond.Value2)
		if err != nil {
			return false, errdef.InvalidArgumentf("datetime range end %q is malformed", cond.Value2)
		}
		return !now.Before(from) && !now.After(to), nil
	case EnvTimeRange:
		from, err := time.Parse("15:04:05", cond.Value1)
		if err != nil {
			return false, errdef.InvalidArgumentf("time range start %q is malformed", cond.Value1)
		}
		to, err := time.Parse("15:04:05", cond.Value2)
		if err != nil {
			return false, errdef.InvalidArgumentf("time range end %q is malformed", cond.Value2)
		}
		wall := now.Hour()*3600 + now.Minute()*60 + now.Second()
		lo := from.Hour()*3600 + from.Minute()*60 + from.Second()
		hi := to.Hour()*3600 + to.Minute()*60 + to.Second()
		if lo <= hi {
			return wall >= lo && wall <= hi, nil
		}
		// range wraps midnight
		return wall >= lo || wall <= hi, nil
	case EnvIPs:
		for _, ip := range strings.Split(cond.Value1, ",") {
			if strings.TrimSpace(ip) == env.CallerIP {
				return true, nil
			}
		}
		return false, nil
	case EnvCallFrequency:
		max, err := strconv.ParseInt(cond.Value1, 10, 64)
		if err != nil {
			return false, errdef.InvalidArgumentf("call frequency limit %q is malformed", cond.Value1)
		}
		return env.CallFrequency <= max, nil
	case EnvCallCount:
		max, err := strconv.ParseInt(cond.Value1, 10, 64)
		if err != nil {
			return false, errdef.InvalidArgumentf("call count limit %q is malformed", cond.Value1)
		}
		return env.CallCount <= max, nil
	default:
		return false, errdef.InvalidArgumentf("unknown environment kind %d", cond.Kind)
	}
}

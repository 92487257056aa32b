package options

import (
	"fmt"
)

func Validate(o *Options) []error {
	var errs []error
	if len(o.PlcAddress) == 0 {
		errs = append(errs, fmt.Errorf("--plc-address is required"))
	}
	if o.PlcPort <= 0 || o.PlcPort > 65535 {
		errs = append(errs, fmt.Errorf("--plc-port %d is out of range", o.PlcPort))
	}
	if err := o.BaseOptions.ValidateAndApply(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

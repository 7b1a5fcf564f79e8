package movement

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// structErr turns validator output into a single ErrValidation.
func structErr(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationErr("%v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.SplitN(fe.Namespace(), ".", 2)
		name := fe.Field()
		if len(field) == 2 {
			name = field[1]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", name, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", name, fe.Tag()))
		}
	}
	return validationErr("%s", strings.Join(msgs, "; "))
}

// Prices and discounts are stored as NUMERIC with two decimal places.
const (
	moneyScale = 2
	maxPrice   = "9999999999999999.99"
)

var priceCeiling = decimal.RequireFromString(maxPrice)

func checkScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(moneyScale)) {
		return validationErr("%s must have at most %d decimal places", field, moneyScale)
	}
	return nil
}

func checkPrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return validationErr("%s must not be negative", field)
	}
	if price.GreaterThan(priceCeiling) {
		return validationErr("%s must not exceed %s", field, maxPrice)
	}
	return checkScale(field, price)
}

func checkDiscount(field string, discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return validationErr("%s must be within [0,100]", field)
	}
	return checkScale(field, discount)
}

// validateImport applies tag rules and the per import type requirements, and
// clears references that do not belong to the chosen type.
func validateImport(v *validator.Validate, in *ImportInput) error {
	if err := structErr(v, in); err != nil {
		return err
	}
	switch in.ImportType {
	case ImportTypeSupplier:
		if in.SupplierID == nil {
			return validationErr("supplierId is required for SUPPLIER imports")
		}
		in.SourceStoreID, in.StaffID = nil, nil
	case ImportTypeInternal:
		if in.SourceStoreID == nil {
			return validationErr("sourceStoreId is required for INTERNAL imports")
		}
		if *in.SourceStoreID == in.StoreID {
			return validationErr("sourceStoreId must differ from storeId")
		}
		in.SupplierID, in.StaffID = nil, nil
	case ImportTypeStaff:
		if in.StaffID == nil {
			return validationErr("staffId is required for STAFF imports")
		}
		in.SupplierID, in.SourceStoreID = nil, nil
	default:
		return validationErr("importType must be one of SUPPLIER, INTERNAL, STAFF")
	}
	for i, l := range in.Lines {
		if err := checkPrice(fmt.Sprintf("lines[%d].unitPrice", i), l.UnitPrice); err != nil {
			return err
		}
		if err := checkDiscount(fmt.Sprintf("lines[%d].discountPercent", i), l.DiscountPercent); err != nil {
			return err
		}
	}
	return nil
}

func validateExport(v *validator.Validate, in *ExportInput) error {
	if err := structErr(v, in); err != nil {
		return err
	}
	switch in.ExportType {
	case "":
		in.ExportType = ExportTypeOrder
	case ExportTypeOrder:
	default:
		return validationErr("exportType must be ORDER")
	}
	for i, l := range in.Lines {
		if err := checkPrice(fmt.Sprintf("lines[%d].unitPrice", i), l.UnitPrice); err != nil {
			return err
		}
		if err := checkDiscount(fmt.Sprintf("lines[%d].discountPercent", i), l.DiscountPercent); err != nil {
			return err
		}
	}
	return nil
}

func validateCheck(v *validator.Validate, in *CheckInput) (time.Time, error) {
	if err := structErr(v, in); err != nil {
		return time.Time{}, err
	}
	checkDate, err := time.Parse("2006-01-02", in.CheckDate)
	if err != nil {
		return time.Time{}, validationErr("checkDate must be YYYY-MM-DD")
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for i, l := range in.Lines {
		if _, dup := seen[l.ProductID]; dup {
			return time.Time{}, validationErr("lines[%d].productId %d is counted twice", i, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		if err := checkPrice(fmt.Sprintf("lines[%d].unitPrice", i), l.UnitPrice); err != nil {
			return time.Time{}, err
		}
	}
	return checkDate, nil
}

package timeline

// OperationMode selects which entity data fields a deployment cares about.
type OperationMode string

const (
	ModeCounter      OperationMode = "counter"
	ModeAttendance   OperationMode = "attendance"
	ModeParking      OperationMode = "parking"
	ModeInventory    OperationMode = "inventory"
	ModeRefrigerator OperationMode = "refrigerator"
)

// FieldKind is the closed set of free-form entity data fields.
type FieldKind string

const (
	FieldStockID    FieldKind = "stock_id"
	FieldLocation   FieldKind = "location"
	FieldExpiration FieldKind = "expiration_dt"
	FieldName       FieldKind = "name"
	FieldSex        FieldKind = "sex"
	FieldEmail      FieldKind = "email"
	FieldProgram    FieldKind = "program"
	FieldPhoto      FieldKind = "photo"
)

type fieldInfo struct {
	label string
	modes map[OperationMode]struct{}
}

func modes(ms ...OperationMode) map[OperationMode]struct{} {
	out := make(map[OperationMode]struct{}, len(ms))
	for _, m := range ms {
		out[m] = struct{}{}
	}
	return out
}

// fieldRegistry maps each field to its display label and the operation modes
// it is valid for.
var fieldRegistry = map[FieldKind]fieldInfo{
	FieldStockID:    {label: "Stock", modes: modes(ModeInventory, ModeRefrigerator)},
	FieldLocation:   {label: "Location", modes: modes(ModeParking, ModeInventory)},
	FieldExpiration: {label: "Expiration Date", modes: modes(ModeInventory, ModeRefrigerator)},
	FieldName:       {label: "Name", modes: modes(ModeAttendance, ModeParking)},
	FieldSex:        {label: "Sex", modes: modes(ModeAttendance)},
	FieldEmail:      {label: "Email", modes: modes(ModeAttendance)},
	FieldProgram:    {label: "Program", modes: modes(ModeAttendance)},
	FieldPhoto:      {label: "Photo", modes: modes(ModeAttendance, ModeParking)},
}

// Label returns the display label for the field.
func (k FieldKind) Label() string {
	if info, ok := fieldRegistry[k]; ok {
		return info.label
	}
	return string(k)
}

// ValidFor reports whether the field applies in the given operation mode.
func (k FieldKind) ValidFor(m OperationMode) bool {
	info, ok := fieldRegistry[k]
	if !ok {
		return false
	}
	_, ok = info.modes[m]
	return ok
}

// Fields holds an entity's free-form data by field kind.
type Fields map[FieldKind]string

// merge returns a copy of f with all entries of other applied on top.
func (f Fields) merge(other Fields) Fields {
	if len(other) == 0 {
		return f
	}
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// JobID — идентификатор schedule (job).
//
// На проводе id может прийти как JSON-строка или как число.
// Внутри всегда хранится текстовая форма, сравнение идёт по ней.
type JobID string

// UnmarshalJSON принимает строку или число.
func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("job id is null")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode job id: %w", err)
		}
		*id = JobID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode job id: %w", err)
	}
	*id = JobID(n.String())
	return nil
}

// String возвращает текстовую форму id.
func (id JobID) String() string {
	return string(id)
}

// ScheduleRecord — schedule, как его видит клиент.
//
// Обязательные поля — ID и ScriptName. Остальные поля ответа сервера
// (user, schedule, parameter_values, next_execution, ...) сохраняются
// в Extra без изменений и возвращаются обратно при сериализации.
type ScheduleRecord struct {
	// ID — идентификатор job.
	ID JobID

	// ScriptName — имя скрипта, к которому привязано расписание.
	ScriptName string

	// Extra — все остальные поля записи в сыром виде.
	Extra map[string]json.RawMessage

	// rawID и rawScriptName — исходные байты полей; выводятся как есть,
	// пока ID и ScriptName не изменены.
	rawID         json.RawMessage
	rawScriptName json.RawMessage
}

const (
	fieldID         = "id"
	fieldScriptName = "script_name"
)

// UnmarshalJSON разбирает запись, сохраняя неизвестные поля.
func (r *ScheduleRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode schedule record: %w", err)
	}

	rawID, ok := fields[fieldID]
	if !ok {
		return errors.New("schedule record has no id")
	}

	var rec ScheduleRecord
	if err := json.Unmarshal(rawID, &rec.ID); err != nil {
		return err
	}
	rec.rawID = rawID
	delete(fields, fieldID)

	if rawName, ok := fields[fieldScriptName]; ok {
		if !bytes.Equal(bytes.TrimSpace(rawName), []byte("null")) {
			if err := json.Unmarshal(rawName, &rec.ScriptName); err != nil {
				return fmt.Errorf("decode script_name: %w", err)
			}
		}
		rec.rawScriptName = rawName
		delete(fields, fieldScriptName)
	}

	if len(fields) > 0 {
		rec.Extra = fields
	}

	*r = rec
	return nil
}

// MarshalJSON собирает запись обратно: id, script_name и все поля из Extra.
// Поля, пришедшие с сервера, выводятся в исходном виде (число остаётся числом),
// script_name без значения не добавляется.
func (r ScheduleRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}

	id := r.rawID
	var decoded JobID
	if len(id) == 0 || json.Unmarshal(id, &decoded) != nil || decoded != r.ID {
		b, err := json.Marshal(string(r.ID))
		if err != nil {
			return nil, err
		}
		id = b
	}
	out[fieldID] = id

	if name, ok := r.scriptNameJSON(); ok {
		out[fieldScriptName] = name
	}

	return json.Marshal(out)
}

// scriptNameJSON возвращает script_name для вывода и false,
// если поле не приходило и не было задано.
func (r ScheduleRecord) scriptNameJSON() (json.RawMessage, bool) {
	if len(r.rawScriptName) > 0 {
		var decoded string
		isNull := bytes.Equal(bytes.TrimSpace(r.rawScriptName), []byte("null"))
		if (isNull && r.ScriptName == "") ||
			(json.Unmarshal(r.rawScriptName, &decoded) == nil && decoded == r.ScriptName) {
			return r.rawScriptName, true
		}
	}
	if len(r.rawScriptName) == 0 && r.ScriptName == "" {
		return nil, false
	}

	b, err := json.Marshal(r.ScriptName)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Field декодирует дополнительное поле в v.
// Возвращает false, если поля нет или оно null.
func (r ScheduleRecord) Field(name string, v any) (bool, error) {
	raw, ok := r.Extra[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode field %s: %w", name, err)
	}
	return true, nil
}

// StringField возвращает дополнительное поле как строку.
// Числа и bool форматируются, отсутствующее поле даёт "".
func (r ScheduleRecord) StringField(name string) string {
	var v any
	ok, err := r.Field(name, &v)
	if !ok || err != nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return string(r.Extra[name])
	}
}

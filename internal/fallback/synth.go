package fallback

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// Pools for synthesized records. Entries are picked by hashing the RUC, so
// the same identifier always synthesizes the same record.
var (
	synthSectors = []string{
		"CONSTRUCCIONES", "INGENIERIA", "SERVICIOS GENERALES", "CONSULTORES",
		"CONTRATISTAS", "INVERSIONES", "OBRAS CIVILES", "PROYECTOS",
	}
	synthRegions = []string{
		"DEL NORTE", "DEL SUR", "DEL CENTRO", "ANDINA", "DEL PACIFICO",
		"AMAZONICA", "COSTERA", "ALTIPLANO",
	}
	synthForms = []string{"S.A.C.", "S.A.", "E.I.R.L.", "S.R.L."}

	synthStreets = []string{
		"AV. LOS INCAS", "JR. AYACUCHO", "CAL. LAS BEGONIAS", "AV. AREQUIPA",
		"JR. UNION", "AV. LA MARINA", "CAL. LOS PINOS", "AV. GRAU",
	}
	synthDistricts = []string{
		"LIMA", "AREQUIPA", "TRUJILLO", "CUSCO", "PIURA", "CHICLAYO",
		"HUANCAYO", "TACNA",
	}

	synthGivenNames = []string{
		"JUAN CARLOS", "MARIA ELENA", "PEDRO MIGUEL", "ANA LUCIA",
		"JORGE LUIS", "ROSA MARIA", "CARLOS ALBERTO", "LUZ MARINA",
	}
	synthSurnames = []string{
		"QUISPE MAMANI", "GARCIA LOPEZ", "RODRIGUEZ VARGAS", "TORRES SALAZAR",
		"FLORES CAMPOS", "RAMIREZ DIAZ", "CASTILLO ROJAS", "MENDOZA PAREDES",
	}
	synthRoles = []string{"GERENTE GENERAL", "GERENTE", "ADMINISTRADOR"}
)

// synthEpoch keeps repeated synthesis calls byte-identical.
var synthEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Synthesize fabricates a deterministic placeholder record for a RUC no
// source could resolve. Clearly tagged: IsRealData=false, quality PARTIAL,
// source "synthetic". Calling it twice yields identical records.
func Synthesize(ruc model.RUC) *model.ConsolidatedRecord {
	sum := md5.Sum([]byte(ruc.String()))
	pick := func(offset int, pool []string) string {
		v := binary.BigEndian.Uint32(sum[offset*4 : offset*4+4])
		return pool[int(v)%len(pool)]
	}

	street := pick(2, synthStreets)
	district := pick(3, synthDistricts)
	number := 100 + int(sum[15])*7%900
	address := fmt.Sprintf("%s NRO. %d, %s", street, number, district)

	rec := &model.ConsolidatedRecord{
		RUC:     ruc,
		Contact: model.ContactBlock{Address: address},
		Status:  "ACTIVO",
		Quality: model.QualityPartial,
		Sources: []string{"synthetic"},
		Warnings: []string{
			"synthesized placeholder: no source could resolve this RUC",
		},
		IsRealData: false,
		ResolvedAt: synthEpoch,
	}

	if ruc.Kind() == model.PersonNatural {
		rec.LegalName = pick(1, synthSurnames) + " " + pick(0, synthGivenNames)
		return rec
	}

	rec.LegalName = fmt.Sprintf("%s %s %s", pick(0, synthSectors), pick(1, synthRegions), pick(2, synthForms))
	rec.Representatives = []model.Representative{
		{
			Name:      pick(1, synthSurnames) + " " + pick(3, synthGivenNames),
			Role:      pick(0, synthRoles),
			Principal: pick(0, synthRoles) == "GERENTE GENERAL",
			Sources:   []string{"synthetic"},
		},
	}
	return rec
}

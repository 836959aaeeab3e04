package location

import "github.com/nkhandelwal/ingres-resolver/internal/model"

// Built-in overrides for places the portal's own search handles poorly.
// Extend via INGRES_LOCATION_OVERRIDES rather than editing this table.
var builtinOverrides = []OverrideEntry{
	// Goa
	{Name: "goa", Type: model.LevelState, LocUUID: "7f615d2f-0be6-42bf-891f-7239e101e487", StateUUID: "7f615d2f-0be6-42bf-891f-7239e101e487"},
	{Name: "goa north", Type: model.LevelDistrict, LocUUID: "263270cc-5797-436b-bdd3-01db6b794e95", StateUUID: "7f615d2f-0be6-42bf-891f-7239e101e487"},
	{Name: "south goa", Type: model.LevelDistrict, LocUUID: "7b17a41f-5c03-44a7-b4c4-7129aaa7a590", StateUUID: "7f615d2f-0be6-42bf-891f-7239e101e487"},

	// Karnataka
	{Name: "karnataka", Type: model.LevelState, LocUUID: "eaec6bbb-a219-415f-bdba-991c42586352", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "bagalkot", Type: model.LevelDistrict, LocUUID: "49b27222-4a5c-4e4f-a9bd-30ac4d51a87e", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "ballari", Type: model.LevelDistrict, LocUUID: "b4e3ff83-c2e9-4782-9668-ad9c14d4dbe6", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "belagavi", Type: model.LevelDistrict, LocUUID: "8bf77049-a0a8-455b-a6c0-efb7d99a9d24", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "bengaluru (rural)", Type: model.LevelDistrict, LocUUID: "5e4381d4-773c-49b0-9283-e229a2fd50dc", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "bengaluru (urban)", Type: model.LevelDistrict, LocUUID: "fc194628-dfa2-4026-b410-5535a5ceea8c", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "bengaluru south", Type: model.LevelDistrict, LocUUID: "6962b8fa-e8a2-4b37-93e0-b798f9ee7c1d", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "bidar", Type: model.LevelDistrict, LocUUID: "516ad9f3-efaf-4910-afa0-bd93a8a28464", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "chamarajanagara", Type: model.LevelDistrict, LocUUID: "44d9230a-8ba3-4516-98a2-df5d90cf7159", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "chikkaballapura", Type: model.LevelDistrict, LocUUID: "20633d6d-e0fa-44f7-bfe3-94948bdcba9b", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "chikkamagaluru", Type: model.LevelDistrict, LocUUID: "6f0ba974-468d-4c54-8550-15d9a856a3ea", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "chitradurga", Type: model.LevelDistrict, LocUUID: "0d16d5d2-449e-4399-bdf8-df0c5b4ec0eb", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "dakshina kannada", Type: model.LevelDistrict, LocUUID: "43aa8b45-4156-4964-b43c-269814d1dd5c", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "davanagere", Type: model.LevelDistrict, LocUUID: "d616e03f-2cae-4e9b-a6fe-2badc580a43b", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "dharwad", Type: model.LevelDistrict, LocUUID: "50850ba4-e017-466b-8a9d-623510323464", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "gadag", Type: model.LevelDistrict, LocUUID: "e3c857a4-0f48-44e7-93fe-c3cebdbe6b55", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "hassan", Type: model.LevelDistrict, LocUUID: "9fa87562-43a6-41a5-84c4-f5876acee609", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "haveri", Type: model.LevelDistrict, LocUUID: "e5e196f0-a033-4f98-9967-d87fb48affb0", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "kalburgi", Type: model.LevelDistrict, LocUUID: "469fe3ba-dfa0-4e56-8a0b-86668ab6a753", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "kodagu", Type: model.LevelDistrict, LocUUID: "b2b853a3-c23e-439d-a187-304eb76388a5", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "koppal", Type: model.LevelDistrict, LocUUID: "73536050-24e3-4bf6-933c-fb2e513a4fae", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "kolara", Type: model.LevelDistrict, LocUUID: "35b9b1af-bd93-4002-8f7f-6a507a7ffe1a", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "mandya", Type: model.LevelDistrict, LocUUID: "05825424-0ea1-4180-a46b-fa3f5a2757af", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "mysuru", Type: model.LevelDistrict, LocUUID: "8caa1ea0-0f84-4652-9e97-48cc6de2b8ae", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "raichur", Type: model.LevelDistrict, LocUUID: "f27aad4d-bbe8-4abd-bc73-dc58f4c89238", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "shivamogga", Type: model.LevelDistrict, LocUUID: "7275b7e2-8f12-4a17-a3d2-8190ad8e0d00", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "tumakuru", Type: model.LevelDistrict, LocUUID: "a6fa20e6-cf53-4598-90a8-88f5510de66a", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "udupi", Type: model.LevelDistrict, LocUUID: "19fafdeb-e34a-4a17-9311-cccfa91cc5de", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "uttara kannada", Type: model.LevelDistrict, LocUUID: "3b9a5a5e-88db-49fd-8812-6799699b1e57", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "vijayanagara", Type: model.LevelDistrict, LocUUID: "ecbae4c8-3945-49c2-8443-605071ed523f", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "vijayapura", Type: model.LevelDistrict, LocUUID: "fe8ad24c-bd8e-4e6e-b550-25d54ac2d25f", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
	{Name: "yadgir", Type: model.LevelDistrict, LocUUID: "567c60cc-3f02-4aec-b3ae-9c6efcc3f53b", StateUUID: "eaec6bbb-a219-415f-bdba-991c42586352"},
}

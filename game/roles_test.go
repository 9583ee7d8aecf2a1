package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolePoolForThemeRepeatsToCover(t *testing.T) {
	pool := RolePoolForTheme("vampire", 5)
	require.Len(t, pool, 5)
	assert.Equal(t, RoleVampire, pool[0])
	assert.Equal(t, RoleAngel, pool[1])
	assert.Equal(t, RoleVampire, pool[2])
}

func TestRolePoolUnknownThemeFallsBack(t *testing.T) {
	pool := RolePoolForTheme("does-not-exist", 3)
	require.Len(t, pool, 3)
	for _, k := range pool {
		assert.NotEqual(t, RoleNone, k)
	}
}

func TestAssignRolesRunsInitHooks(t *testing.T) {
	e := newTestEngine(t)
	players := addPlayers(t, e, "a", "b")
	for _, p := range players {
		p.Alive = true
	}

	assignRoles(players, []RoleKind{RoleBeast, RoleAngel}, rand.New(rand.NewSource(1)), 0)

	var beast, angel *Player
	for _, p := range players {
		switch p.Role {
		case RoleBeast:
			beast = p
		case RoleAngel:
			angel = p
		}
	}
	require.NotNil(t, beast)
	require.NotNil(t, angel)
	assert.Equal(t, beastToughness, beast.Toughness)
	assert.Equal(t, 1, angel.CurrentCharges)
}

func TestExecutionerTargetsSomeoneElse(t *testing.T) {
	e := newTestEngine(t)
	players := addPlayers(t, e, "a", "b", "c")

	assignRoles(players, []RoleKind{RoleExecutioner, RoleNone, RoleNone}, rand.New(rand.NewSource(1)), 0)

	var exec *Player
	for _, p := range players {
		if p.Role == RoleExecutioner {
			exec = p
		}
	}
	require.NotNil(t, exec)
	assert.NotEmpty(t, exec.TargetPlayerID)
	assert.NotEqual(t, exec.ID, exec.TargetPlayerID)
}

func TestExecutionerRewardOnTargetDeath(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b")
	startGame(t, e, ModeClassic)

	exec, _ := e.Player("a")
	victim, _ := e.Player("b")
	exec.Role = RoleExecutioner
	exec.TargetPlayerID = victim.ID
	exec.TargetPlayerName = victim.Name

	victim.TakeDamage(150, e.gameTime)

	assert.Equal(t, executionerReward, exec.Points)
	assert.Empty(t, exec.TargetPlayerID, "reward is one-time")
	assert.True(t, exec.HasEffect(EffectInvulnerability))
}

func TestExecutionerIgnoresOtherDeaths(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b", "c")
	startGame(t, e, ModeClassic)

	exec, _ := e.Player("a")
	target, _ := e.Player("b")
	other, _ := e.Player("c")
	exec.Role = RoleExecutioner
	exec.TargetPlayerID = target.ID

	other.TakeDamage(150, e.gameTime)

	assert.Equal(t, 0, exec.Points)
	assert.Equal(t, target.ID, exec.TargetPlayerID)
}

func TestBeastHunterBounty(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "h", "m", "x")
	startGame(t, e, ModeClassic)

	hunter, _ := e.Player("h")
	beast, _ := e.Player("m")
	hunter.Role = RoleBeastHunter
	beast.Role = RoleBeast
	roleTable[RoleBeast].onInit(beast, 0)

	beast.TakeDamage(1000, e.gameTime)

	require.False(t, beast.Alive)
	assert.Equal(t, beastHunterBounty, hunter.Points)
}

func TestExecutionerTargetDeathAnnouncesRoleUpdate(t *testing.T) {
	e := newTestEngine(t)
	addPlayers(t, e, "a", "b")
	rec := recordEvents(e)
	startGame(t, e, ModeClassic)

	exec, _ := e.Player("a")
	victim, _ := e.Player("b")
	exec.Role = RoleExecutioner
	exec.TargetPlayerID = victim.ID
	exec.TargetPlayerName = victim.Name

	victim.TakeDamage(150, e.gameTime)

	updates := rec.all(TopicRoleUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, exec.ID, updates[0].TargetID, "the update is private to the executioner")
	data := updates[0].Data.(map[string]any)
	assert.Equal(t, string(RoleExecutioner), data["name"])
	assert.NotContains(t, data, "targetName", "the fulfilled contract is cleared")
}

func TestRoleMetaKnownForAllRoles(t *testing.T) {
	for _, k := range []RoleKind{RoleNone, RoleVampire, RoleAngel, RoleBeast, RoleBeastHunter, RoleExecutioner} {
		meta := k.Meta()
		assert.NotEmpty(t, meta.DisplayName, string(k))
	}
}

func TestRoleTableCoversEveryKind(t *testing.T) {
	for k := range roleMeta {
		_, ok := roleTable[k]
		assert.True(t, ok, string(k))
	}
	assert.Len(t, roleTable, len(roleMeta))
}

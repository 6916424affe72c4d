package sqlinline

const QSelectCreditBalance = `--sql c7ea134b-81de-475a-8f65-f0bb1f2d0a97
select credits
from users
where id = $1::text
limit 1;
`

// QDebitUsageCredits decrements the balance and writes the usage entry
// in one statement. The floor check lives in the update predicate: zero
// returned rows means the balance was too low.
const QDebitUsageCredits = `--sql b0ddf75d-ec13-400a-bfa7-6b0e655ea9ab
with input as (
    select
        $1::text as user_id,
        $2::uuid as generation_id,
        $3::int  as amount,
        $4::text as description
),
debited as (
    update users u
    set credits = u.credits - (select amount from input),
        updated_at = now()
    where u.id = (select user_id from input)
      and u.credits >= (select amount from input)
    returning u.credits as balance_after
)
insert into credit_ledger (id, user_id, generation_id, entry_type, amount, balance_after, description, created_at)
select gen_random_uuid(), (select user_id from input), (select generation_id from input), 'usage',
       -(select amount from input), d.balance_after, (select description from input), now()
from debited d
returning balance_after;
`

// QRefundUsageCredits inserts the refund entry first so the partial
// unique index on (generation_id) where entry_type = 'refund'
// arbitrates concurrent refunds, then credits the balance only when
// this call won the insert. Zero returned rows means a refund for this
// generation already exists.
const QRefundUsageCredits = `--sql ae52cf63-36a8-42f6-a6b8-b4d1049d3b58
with input as (
    select
        $1::text as user_id,
        $2::uuid as generation_id,
        $3::int  as amount,
        $4::text as description
),
claimed as (
    insert into credit_ledger (id, user_id, generation_id, entry_type, amount, balance_after, description, created_at)
    select gen_random_uuid(), i.user_id, i.generation_id, 'refund',
           i.amount, u.credits + i.amount, i.description, now()
    from input i
    join users u on u.id = i.user_id
    on conflict (generation_id) where entry_type = 'refund' do nothing
    returning user_id, amount
)
update users u
set credits = u.credits + c.amount,
    updated_at = now()
from claimed c
where u.id = c.user_id
returning u.credits as balance_after;
`

const QGrantCredits = `--sql 9c745405-d47a-4f67-ab50-ee4fdb4c38f0
with input as (
    select
        $1::text as user_id,
        $2::int  as amount,
        $3::text as entry_type,
        $4::text as description
),
upserted as (
    insert into users (id, credits, created_at, updated_at)
    values ((select user_id from input), (select amount from input), now(), now())
    on conflict (id) do update set
        credits = users.credits + excluded.credits,
        updated_at = now()
    returning credits as balance_after
)
insert into credit_ledger (id, user_id, generation_id, entry_type, amount, balance_after, description, created_at)
select gen_random_uuid(), (select user_id from input), null, (select entry_type from input),
       (select amount from input), u.balance_after, (select description from input), now()
from upserted u
returning balance_after;
`

const QSelectCreditHistory = `--sql 677ceb1b-9b43-43f6-af99-f108430938ea
select
    id,
    user_id,
    coalesce(generation_id::text, '') as generation_id,
    entry_type,
    amount,
    balance_after,
    coalesce(description, '') as description,
    created_at
from credit_ledger
where user_id = $1::text
order by created_at desc, id desc
limit $2::int;
`

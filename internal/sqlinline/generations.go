package sqlinline

const QInsertGeneration = `--sql 5465efea-efd5-4509-bb25-03ccc7e515e2
insert into generations (id, user_id, status, request, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::jsonb, now(), now());
`

const QSetGenerationStatus = `--sql e892a97a-4c1c-46c6-ad23-4f79a23bbd73
update generations
set status = $2::text,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QSetGenerationAnalysis = `--sql 4511a619-2e32-4a62-9bec-9b07f1842b20
update generations
set metadata = $2::jsonb,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QSetGenerationMatch = `--sql f64bcbef-5ded-4886-b806-966892e43ecc
update generations
set reference_id = $2::text,
    match_score = $3::double precision,
    matched_on = $4::jsonb,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QSetGenerationPrompt = `--sql 8ffd967d-328d-41ef-85b2-dd255f2b248b
update generations
set prompt = $2::jsonb,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QSetGenerationSynthesis = `--sql 09a338ea-354d-41ad-ae19-dfe5d4bb60d5
update generations
set raw_image_url = $2::text,
    provider = $3::text,
    credits_charged = $4::int,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QCompleteGeneration = `--sql 28f4c232-215e-44d0-845f-d12bbca72a8a
update generations
set status = 'completed',
    final_image_url = $2::text,
    assessment = $3::jsonb,
    applied_effects = $4::jsonb,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QFailGeneration = `--sql 174ec690-adaf-4184-b1e5-ba8fcc42d0fc
update generations
set status = 'failed',
    error_message = $2::text,
    refunded = $3::boolean,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QSelectGenerationStatus = `--sql 70cec9fb-973b-4697-a69e-2d2fa079874a
select status
from generations
where id = $1::uuid
limit 1;
`

// QSelectUnsettledGenerations finds records the pipeline never closed
// out: non-terminal rows untouched since the cutoff, plus failed rows
// whose debit has no matching refund entry. Usage amounts are stored
// negative, so the join negates them back into a positive debit.
const QSelectUnsettledGenerations = `--sql bb9315b4-68be-4cb6-bb6d-b1a9b1376d6f
select
    g.id,
    g.user_id,
    g.status,
    coalesce(-l.amount, 0) as debited,
    coalesce(g.error_message, '') as error_message,
    g.updated_at
from generations g
left join credit_ledger l
  on l.generation_id = g.id
 and l.entry_type = 'usage'
where (g.status not in ('completed', 'failed') and g.updated_at < $1::timestamptz)
   or (g.status = 'failed' and g.refunded = false and l.id is not null
       and not exists (
           select 1
           from credit_ledger r
           where r.generation_id = g.id
             and r.entry_type = 'refund'))
order by g.updated_at asc
limit $2::int;
`

// QMarkGenerationRefunded records a late compensating refund on a
// record that already failed.
const QMarkGenerationRefunded = `--sql 25762db5-52df-4c82-9d1f-b1622a3c46c2
update generations
set refunded = true,
    updated_at = now()
where id = $1::uuid
  and status = 'failed'
  and refunded = false;
`

const QSelectGenerationByID = `--sql 531eff39-3f92-46d7-b6af-3c8721d03e12
select
    id,
    user_id,
    status,
    request,
    metadata,
    coalesce(reference_id, '') as reference_id,
    coalesce(match_score, 0) as match_score,
    matched_on,
    prompt,
    coalesce(raw_image_url, '') as raw_image_url,
    coalesce(final_image_url, '') as final_image_url,
    coalesce(provider, '') as provider,
    assessment,
    applied_effects,
    credits_charged,
    refunded,
    coalesce(error_message, '') as error_message,
    created_at,
    updated_at
from generations
where id = $1::uuid
limit 1;
`

const QSelectGenerationsByUser = `--sql 3d40fc81-2a9d-4f8a-a1c8-d2b1c9b49536
select
    id,
    user_id,
    status,
    request,
    metadata,
    coalesce(reference_id, '') as reference_id,
    coalesce(match_score, 0) as match_score,
    matched_on,
    prompt,
    coalesce(raw_image_url, '') as raw_image_url,
    coalesce(final_image_url, '') as final_image_url,
    coalesce(provider, '') as provider,
    assessment,
    applied_effects,
    credits_charged,
    refunded,
    coalesce(error_message, '') as error_message,
    created_at,
    updated_at
from generations
where user_id = $1::text
order by created_at desc
limit $2::int;
`
